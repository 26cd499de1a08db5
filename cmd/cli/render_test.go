package main

import (
	"bytes"
	"flag"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/domain"
)

func TestRenderDevices(t *testing.T) {
	s := domain.DeviceSummary{
		DeviceID:       "356789012345678",
		ActivationDate: civil.Date{Year: 2025, Month: 1, Day: 10},
		Store:          "Main St",
		SaleType:       "Upgrade",
		TotalEarned:    90,
		TotalWithheld:  -15.5,
		NetAmount:      74.5,
		AlertCount:     1,
		IsActive:       true,
	}
	for i := range s.Months {
		s.Months[i] = domain.MonthStatus{Month: i + 1, Status: domain.StatusPending}
	}
	s.Months[0].Status = domain.StatusPaid
	s.Months[1].Status = domain.StatusOverdue

	var buf bytes.Buffer
	renderDevices(&buf, []domain.DeviceSummary{s})
	out := buf.String()

	assert.Contains(t, out, "356789012345678")
	assert.Contains(t, out, "2025-01-10")
	assert.Contains(t, out, "overdue")
	assert.Contains(t, out, "74.50")
	assert.Contains(t, out, "-15.50")
	assert.Contains(t, strings.ToUpper(out), "1 DEVICES")
}

func TestRenderAlerts(t *testing.T) {
	alerts := []domain.Alert{
		{DeviceID: "111", Type: domain.AlertSequenceGap, Severity: domain.SeverityHigh, ExpectedMonth: 2, Message: "Month 2 payment missing"},
		{DeviceID: "222", Type: domain.AlertNegative, Severity: domain.SeverityLow, Amount: -20, Message: "Withheld"},
	}

	var buf bytes.Buffer
	renderAlerts(&buf, alerts)
	out := buf.String()

	assert.Contains(t, out, "sequence_gap")
	assert.Contains(t, out, "Month 2 payment missing")
	assert.Contains(t, out, "-20.00")
}

func TestRenderMetricsAndPurge(t *testing.T) {
	var buf bytes.Buffer
	renderMetrics(&buf, domain.Metrics{TotalEarned: 120, NetCommission: 100, UniqueDevices: 3, CurrentPeriod: "April 2025"})
	out := buf.String()
	assert.Contains(t, out, "April 2025")
	assert.Contains(t, out, "120.00")

	buf.Reset()
	renderPurge(&buf, commission.PurgeResult{Devices: []string{"111", "222"}, Transactions: 12})
	assert.Contains(t, buf.String(), "222")
	assert.Contains(t, strings.ToUpper(buf.String()), "2 DEVICES, 12 TRANSACTIONS")
}

func TestAnnotationPatch_OnlySetFlags(t *testing.T) {
	fs := flag.NewFlagSet("annotate", flag.ContinueOnError)
	notes := fs.String("notes", "", "")
	name := fs.String("customer-name", "", "")
	suspended := fs.Bool("suspended", false, "")
	blacklisted := fs.Bool("blacklisted", false, "")
	require.NoError(t, fs.Parse([]string{"-notes", "  called store  ", "-suspended"}))

	patch := annotationPatch(fs,
		map[string]*string{"notes": notes, "customer-name": name},
		map[string]*bool{"suspended": suspended, "blacklisted": blacklisted},
	)

	require.NotNil(t, patch.Notes)
	assert.Equal(t, "called store", *patch.Notes)
	assert.Nil(t, patch.CustomerName)
	require.NotNil(t, patch.Suspended)
	assert.True(t, *patch.Suspended)
	assert.Nil(t, patch.Blacklisted)
	assert.Nil(t, patch.Deactivated)
}

func TestFooter(t *testing.T) {
	assert.Equal(t, []string{"", "", "x"}, footer(3, "x"))
}
