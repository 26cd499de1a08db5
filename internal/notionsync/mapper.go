package notionsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// Database property names.
const (
	PropIMEI           = "IMEI"
	PropActivationDate = "Activation Date"
	PropStore          = "Store"
	PropSaleType       = "Sale Type"
	PropRep            = "Rep"
	PropTotalEarned    = "Total Earned"
	PropTotalWithheld  = "Total Withheld"
	PropNet            = "Net"
	PropAlerts         = "Alerts"
	PropActive         = "Active"
	PropSuspended      = "Suspended"
	PropDeactivated    = "Deactivated"
	PropBlacklisted    = "Blacklisted"
	PropBYODSwap       = "BYOD Swap"
	PropNotes          = "Notes"
	PropCustomer       = "Customer"
)

// MonthProperty returns the property name of a month status column.
func MonthProperty(month int) string {
	return fmt.Sprintf("Month %d", month)
}

// SummaryToNotionProperties converts a device summary and its annotation to
// the properties of one database page.
func SummaryToNotionProperties(s domain.DeviceSummary, a domain.DeviceAnnotation) notionapi.Properties {
	props := notionapi.Properties{
		PropIMEI: notionapi.TitleProperty{
			Title: richText(s.DeviceID),
		},
		PropTotalEarned:   notionapi.NumberProperty{Number: s.TotalEarned},
		PropTotalWithheld: notionapi.NumberProperty{Number: s.TotalWithheld},
		PropNet:           notionapi.NumberProperty{Number: s.NetAmount},
		PropAlerts:        notionapi.NumberProperty{Number: float64(s.AlertCount)},
		PropActive:        notionapi.CheckboxProperty{Checkbox: s.IsActive},
		PropSuspended:     notionapi.CheckboxProperty{Checkbox: a.Suspended},
		PropDeactivated:   notionapi.CheckboxProperty{Checkbox: a.Deactivated},
		PropBlacklisted:   notionapi.CheckboxProperty{Checkbox: a.Blacklisted},
		PropBYODSwap:      notionapi.CheckboxProperty{Checkbox: a.BYODSwap},
		PropNotes:         notionapi.RichTextProperty{RichText: richText(a.Notes)},
	}

	if !s.ActivationDate.IsZero() {
		d := notionapi.Date(s.ActivationDate.In(time.UTC))
		props[PropActivationDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	// Notion rejects empty select options.
	if s.Store != "" {
		props[PropStore] = notionapi.SelectProperty{Select: notionapi.Option{Name: selectName(s.Store)}}
	}
	if s.SaleType != "" {
		props[PropSaleType] = notionapi.SelectProperty{Select: notionapi.Option{Name: selectName(s.SaleType)}}
	}
	if s.RepUsername != "" {
		props[PropRep] = notionapi.RichTextProperty{RichText: richText(s.RepUsername)}
	}
	if a.CustomerName != "" {
		props[PropCustomer] = notionapi.RichTextProperty{RichText: richText(a.CustomerName)}
	}

	for _, m := range s.Months {
		props[MonthProperty(m.Month)] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(m.Status)},
		}
	}

	return props
}

func richText(s string) []notionapi.RichText {
	if s == "" {
		return []notionapi.RichText{}
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// selectName strips commas, which Notion does not allow in select options.
func selectName(s string) string {
	return strings.ReplaceAll(s, ",", " ")
}

// extractIMEI reads the title of a page. Pages decoded from the API carry
// pointer properties; pages built locally carry values.
func extractIMEI(page notionapi.Page) string {
	var title []notionapi.RichText
	switch p := page.Properties[PropIMEI].(type) {
	case *notionapi.TitleProperty:
		title = p.Title
	case notionapi.TitleProperty:
		title = p.Title
	}
	if len(title) == 0 {
		return ""
	}
	if title[0].PlainText != "" {
		return title[0].PlainText
	}
	if title[0].Text != nil {
		return title[0].Text.Content
	}
	return ""
}
