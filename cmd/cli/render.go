package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/domain"
)

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	return table
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func renderIngestResult(w io.Writer, filename string, r domain.IngestResult) {
	table := newTable(w, "File", "Batch", "Inserted", "Duplicates", "Skipped")
	table.Append([]string{
		filename,
		r.BatchID,
		strconv.Itoa(r.Inserted),
		strconv.Itoa(r.Duplicates),
		strconv.Itoa(r.Skipped),
	})
	table.Render()
}

func renderDevices(w io.Writer, summaries []domain.DeviceSummary) {
	headers := []string{"IMEI", "Activated", "Store", "Sale type"}
	for m := 1; m <= domain.MonthsInLifecycle; m++ {
		headers = append(headers, "M"+strconv.Itoa(m))
	}
	headers = append(headers, "Earned", "Withheld", "Net", "Alerts", "Active")

	table := newTable(w, headers...)
	for _, s := range summaries {
		row := []string{s.DeviceID, activation(s), s.Store, s.SaleType}
		for _, m := range s.Months {
			row = append(row, string(m.Status))
		}
		row = append(row,
			money(s.TotalEarned),
			money(s.TotalWithheld),
			money(s.NetAmount),
			strconv.Itoa(s.AlertCount),
			strconv.FormatBool(s.IsActive),
		)
		table.Append(row)
	}
	table.SetFooter(footer(len(headers), fmt.Sprintf("%d devices", len(summaries))))
	table.Render()
}

func activation(s domain.DeviceSummary) string {
	if s.ActivationDate.IsZero() {
		return ""
	}
	return s.ActivationDate.String()
}

func renderAlerts(w io.Writer, alerts []domain.Alert) {
	table := newTable(w, "Severity", "Type", "IMEI", "Month", "Days overdue", "Amount", "Message")
	for _, a := range alerts {
		month := ""
		if a.ExpectedMonth > 0 {
			month = strconv.Itoa(a.ExpectedMonth)
		}
		days := ""
		if a.DaysOverdue > 0 {
			days = strconv.Itoa(a.DaysOverdue)
		}
		amount := ""
		if a.Type == domain.AlertNegative {
			amount = money(a.Amount)
		}
		table.Append([]string{string(a.Severity), string(a.Type), a.DeviceID, month, days, amount, a.Message})
	}
	table.SetFooter(footer(7, fmt.Sprintf("%d alerts", len(alerts))))
	table.Render()
}

func renderMetrics(w io.Writer, m domain.Metrics) {
	table := newTable(w, "Metric", "Value")
	table.AppendBulk([][]string{
		{"Period", m.CurrentPeriod},
		{"Total earned", money(m.TotalEarned)},
		{"Total withheld", money(m.TotalWithheld)},
		{"Net commission", money(m.NetCommission)},
		{"Unique IMEIs", strconv.Itoa(m.UniqueDevices)},
		{"Negative payments", strconv.Itoa(m.NegativeCount)},
		{"Overdue payments", strconv.Itoa(m.OverduePayments)},
		{"Missing months", strconv.Itoa(m.MissingMonths)},
		{"Devices with notes", strconv.Itoa(m.Annotations.Notes)},
		{"Suspended", strconv.Itoa(m.Annotations.Suspended)},
		{"Deactivated", strconv.Itoa(m.Annotations.Deactivated)},
		{"Blacklisted", strconv.Itoa(m.Annotations.Blacklisted)},
		{"BYOD swaps", strconv.Itoa(m.Annotations.BYOD)},
	})
	table.Render()
}

func renderAnnotation(w io.Writer, a domain.DeviceAnnotation) {
	table := newTable(w, "Field", "Value")
	table.AppendBulk([][]string{
		{"IMEI", a.DeviceID},
		{"Notes", a.Notes},
		{"Withholding resolved", strconv.FormatBool(a.WithholdingResolved)},
		{"Alerts acknowledged", strconv.FormatBool(a.AlertsAcknowledged)},
		{"Suspended", strconv.FormatBool(a.Suspended)},
		{"Deactivated", strconv.FormatBool(a.Deactivated)},
		{"Blacklisted", strconv.FormatBool(a.Blacklisted)},
		{"BYOD swap", strconv.FormatBool(a.BYODSwap)},
		{"Customer", a.CustomerName},
		{"Customer number", a.CustomerNumber},
		{"Customer email", a.CustomerEmail},
	})
	table.Render()
}

func renderPurge(w io.Writer, r commission.PurgeResult) {
	table := newTable(w, "Purged IMEI")
	for _, id := range r.Devices {
		table.Append([]string{id})
	}
	table.SetFooter([]string{fmt.Sprintf("%d devices, %d transactions", len(r.Devices), r.Transactions)})
	table.Render()
}

// footer puts label in the last column of an n-column footer.
func footer(n int, label string) []string {
	f := make([]string, n)
	f[n-1] = label
	return f
}
