// Package csvimport maps carrier commission exports onto transactions.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// daysPerMonth approximates a payout month when the description names none.
const daysPerMonth = 35

var (
	monthPattern  = regexp.MustCompile(`(?i)Month\s*(\d+)`)
	imeiInText    = regexp.MustCompile(`(?i)IMEI\s*(\d{15})`)
	fifteenDigits = regexp.MustCompile(`\d{15}`)
	slashDate     = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)
	storeSuffix   = regexp.MustCompile(`\*\d+$`)
	amountJunk    = regexp.MustCompile(`[^0-9.\-]`)
)

// Result is the outcome of parsing one export.
type Result struct {
	Rows []domain.Transaction
	// Skipped counts data rows without a usable IMEI or with a zero amount.
	Skipped int
	// Total is the number of data rows read.
	Total int
}

type columns struct {
	paymentDate, activationDate, imei, saleIMEI, amount        int
	paymentType, description, saleType, rep, store, adjustment int
}

func findColumns(header []string) columns {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	col := func(names ...string) int {
		for _, n := range names {
			if i, ok := index[strings.ToLower(n)]; ok {
				return i
			}
		}
		return -1
	}
	return columns{
		paymentDate:    col("Payment Date"),
		activationDate: col("Activation Date/Swap Date", "Activation Date"),
		imei:           col("IMEI"),
		saleIMEI:       col("Sale IMEI"),
		amount:         col("Amount"),
		paymentType:    col("Payment Type"),
		description:    col("Payment Description"),
		saleType:       col("Sale Type"),
		rep:            col("Rep Username"),
		store:          col("Business Name"),
		adjustment:     col("Adjustment Reason"),
	}
}

// Parse reads a CSV export. Every returned row carries batchID as its
// source file id. A missing header or a header without an Amount column is
// a validation error; individual bad rows are only counted.
func Parse(r io.Reader, batchID string) (Result, error) {
	var result Result

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return result, &domain.ValidationError{Field: "file", Reason: "CSV file is empty"}
	}
	if err != nil {
		return result, fmt.Errorf("Parse: reading header: %w", err)
	}
	col := findColumns(header)
	if col.amount < 0 {
		return result, &domain.ValidationError{Field: "file", Reason: "missing Amount column"}
	}
	if col.imei < 0 && col.saleIMEI < 0 && col.description < 0 {
		return result, &domain.ValidationError{Field: "file", Reason: "no IMEI column"}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("Parse: reading row %d: %w", result.Total+2, err)
		}
		if blank(record) {
			continue
		}
		result.Total++

		tx, ok := mapRow(record, col)
		if !ok {
			result.Skipped++
			continue
		}
		tx.SourceFileID = batchID
		result.Rows = append(result.Rows, tx)
	}
	return result, nil
}

func mapRow(record []string, col columns) (domain.Transaction, bool) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	description := field(col.description)
	imei := resolveIMEI(field(col.imei), field(col.saleIMEI), description)
	if imei == "" {
		return domain.Transaction{}, false
	}
	amount := CleanAmount(field(col.amount))
	if amount == 0 {
		return domain.Transaction{}, false
	}

	paid, paidOK := ParseExportDate(field(col.paymentDate))
	activated, activatedOK := ParseExportDate(field(col.activationDate))

	tx := domain.Transaction{
		DeviceID:         imei,
		Amount:           amount,
		Description:      description,
		PaymentType:      field(col.paymentType),
		SaleType:         field(col.saleType),
		RepUsername:      field(col.rep),
		Store:            strings.TrimSpace(storeSuffix.ReplaceAllString(field(col.store), "")),
		AdjustmentReason: field(col.adjustment),
	}
	if tx.PaymentType == "" {
		tx.PaymentType = "Commission"
	}
	if tx.SaleType == "" {
		tx.SaleType = "Unknown"
	}
	if paidOK {
		tx.PaymentDate = paid.String()
	}
	if activatedOK {
		tx.ActivationDate = activated.String()
	}

	if m, ok := MonthFromDescription(description); ok {
		tx.MonthNumber = domain.IntPtr(m)
	} else if paidOK && activatedOK {
		if m, ok := monthFromDates(activated, paid); ok {
			tx.MonthNumber = domain.IntPtr(m)
		}
	}
	return tx, true
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// CleanIMEI strips the ="…" wrapper spreadsheets put around long numbers.
func CleanIMEI(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `="`)
	s = strings.TrimSuffix(s, `"`)
	return strings.TrimSpace(s)
}

func resolveIMEI(imei, saleIMEI, description string) string {
	if v := CleanIMEI(imei); usableIMEI(v) {
		return v
	}
	if v := CleanIMEI(saleIMEI); usableIMEI(v) {
		return v
	}
	if m := imeiInText.FindStringSubmatch(description); m != nil {
		return m[1]
	}
	return fifteenDigits.FindString(description)
}

func usableIMEI(s string) bool {
	return s != "" && !strings.EqualFold(s, "unknown")
}

// CleanAmount parses currency text such as "$1,234.50" or "-45.00". Text
// that does not parse yields zero.
func CleanAmount(s string) float64 {
	s = amountJunk.ReplaceAllString(s, "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseExportDate accepts MM/DD/YYYY, MM-DD-YYYY (two-digit years are
// 20xx) and ISO dates.
func ParseExportDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	if m := slashDate.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		d := civil.Date{Year: year, Month: time.Month(month), Day: day}
		if !d.IsValid() {
			return civil.Date{}, false
		}
		return d, true
	}
	return domain.ParseDate(s)
}

// MonthFromDescription extracts N from "Month N" or "MonthN".
func MonthFromDescription(desc string) (int, bool) {
	m := monthPattern.FindStringSubmatch(desc)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func monthFromDates(activated, paid civil.Date) (int, bool) {
	days := paid.DaysSince(activated)
	if days < 0 {
		return 0, false
	}
	m := days/daysPerMonth + 1
	if m > domain.MonthsInLifecycle {
		return 0, false
	}
	return m, true
}
