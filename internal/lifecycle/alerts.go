package lifecycle

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// overdueHighDays is the age past which an overdue month becomes high severity.
const overdueHighDays = 30

// DeriveAlerts turns classified summaries into a flat alert list ordered by
// severity. Alert ids depend only on device, type and month, so re-deriving
// yields the same keys.
func DeriveAlerts(summaries []domain.DeviceSummary, annotations map[string]domain.DeviceAnnotation, today civil.Date) []domain.Alert {
	alerts := make([]domain.Alert, 0)

	for _, s := range summaries {
		for _, m := range s.Months {
			if m.Status != domain.StatusMissing {
				continue
			}
			expected := m.ExpectedDate
			alerts = append(alerts, domain.Alert{
				ID:             fmt.Sprintf("%s-missing-%d", s.DeviceID, m.Month),
				DeviceID:       s.DeviceID,
				Type:           domain.AlertSequenceGap,
				Severity:       domain.SeverityHigh,
				Message:        fmt.Sprintf("Month %d payment missing (later months received)", m.Month),
				ExpectedMonth:  m.Month,
				ExpectedDate:   &expected,
				ActivationDate: s.ActivationDate,
				DaysOverdue:    DaysOverdue(expected, today),
			})
		}

		for _, m := range s.Months {
			if m.Status != domain.StatusOverdue {
				continue
			}
			expected := m.ExpectedDate
			days := DaysOverdue(expected, today)
			severity := domain.SeverityMedium
			if days > overdueHighDays {
				severity = domain.SeverityHigh
			}
			alerts = append(alerts, domain.Alert{
				ID:             fmt.Sprintf("%s-overdue-%d", s.DeviceID, m.Month),
				DeviceID:       s.DeviceID,
				Type:           domain.AlertOverdue,
				Severity:       severity,
				Message:        fmt.Sprintf("Month %d payment overdue by %d days", m.Month, days),
				ExpectedMonth:  m.Month,
				ExpectedDate:   &expected,
				ActivationDate: s.ActivationDate,
				DaysOverdue:    days,
			})
		}

		if s.TotalWithheld > 0 && !annotations[s.DeviceID].WithholdingResolved {
			alerts = append(alerts, domain.Alert{
				ID:             s.DeviceID + "-negative",
				DeviceID:       s.DeviceID,
				Type:           domain.AlertNegative,
				Severity:       domain.SeverityMedium,
				Message:        fmt.Sprintf("Withholding/clawback detected: -$%.2f", s.TotalWithheld),
				ActivationDate: s.ActivationDate,
				Amount:         s.TotalWithheld,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
	})
	return alerts
}

// CountByType tallies alerts of one type.
func CountByType(alerts []domain.Alert, t domain.AlertType) int {
	n := 0
	for _, a := range alerts {
		if a.Type == t {
			n++
		}
	}
	return n
}
