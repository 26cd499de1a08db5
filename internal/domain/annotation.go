package domain

import (
	"strings"
	"time"
)

// DeviceAnnotation holds operator state for a device. It lives independently
// of the device's transactions and survives their deletion.
type DeviceAnnotation struct {
	DeviceID            string    `json:"device_id"`
	Notes               string    `json:"notes"`
	WithholdingResolved bool      `json:"withholding_resolved"`
	AlertsAcknowledged  bool      `json:"alerts_acknowledged"`
	Suspended           bool      `json:"suspended"`
	Deactivated         bool      `json:"deactivated"`
	Blacklisted         bool      `json:"blacklisted"`
	BYODSwap            bool      `json:"byod_swap"`
	CustomerName        string    `json:"customer_name,omitempty"`
	CustomerNumber      string    `json:"customer_number,omitempty"`
	CustomerEmail       string    `json:"customer_email,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// AnnotationPatch is a partial annotation write; nil fields are kept.
type AnnotationPatch struct {
	Notes               *string `json:"notes,omitempty"`
	WithholdingResolved *bool   `json:"withholding_resolved,omitempty"`
	AlertsAcknowledged  *bool   `json:"alerts_acknowledged,omitempty"`
	Suspended           *bool   `json:"suspended,omitempty"`
	Deactivated         *bool   `json:"deactivated,omitempty"`
	Blacklisted         *bool   `json:"blacklisted,omitempty"`
	BYODSwap            *bool   `json:"byod_swap,omitempty"`
	CustomerName        *string `json:"customer_name,omitempty"`
	CustomerNumber      *string `json:"customer_number,omitempty"`
	CustomerEmail       *string `json:"customer_email,omitempty"`
}

// Validate enforces that a single write cannot mark a device both suspended
// and deactivated.
func (p AnnotationPatch) Validate() error {
	if p.Suspended != nil && p.Deactivated != nil && *p.Suspended && *p.Deactivated {
		return &ValidationError{Field: "suspended", Reason: "cannot be set together with deactivated"}
	}
	return nil
}

// Apply merges the patch into a. Turning on suspended clears deactivated and
// the other way around, so the pair stays mutually exclusive.
func (p AnnotationPatch) Apply(a *DeviceAnnotation) {
	setString(&a.Notes, p.Notes)
	setString(&a.CustomerName, p.CustomerName)
	setString(&a.CustomerNumber, p.CustomerNumber)
	setString(&a.CustomerEmail, p.CustomerEmail)
	setBool(&a.WithholdingResolved, p.WithholdingResolved)
	setBool(&a.AlertsAcknowledged, p.AlertsAcknowledged)
	setBool(&a.Blacklisted, p.Blacklisted)
	setBool(&a.BYODSwap, p.BYODSwap)
	setBool(&a.Suspended, p.Suspended)
	setBool(&a.Deactivated, p.Deactivated)

	if p.Suspended != nil && *p.Suspended {
		a.Deactivated = false
	}
	if p.Deactivated != nil && *p.Deactivated {
		a.Suspended = false
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// AnnotationFlag selects annotation listings.
type AnnotationFlag string

const (
	FlagNotes       AnnotationFlag = "notes"
	FlagSuspended   AnnotationFlag = "suspended"
	FlagDeactivated AnnotationFlag = "deactivated"
	FlagBlacklisted AnnotationFlag = "blacklisted"
	FlagBYOD        AnnotationFlag = "byod"
)

// ParseAnnotationFlag accepts the flag names used by the API.
func ParseAnnotationFlag(s string) (AnnotationFlag, error) {
	switch f := AnnotationFlag(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FlagNotes, FlagSuspended, FlagDeactivated, FlagBlacklisted, FlagBYOD:
		return f, nil
	}
	return "", &ValidationError{Field: "flag", Reason: "unknown annotation flag " + s}
}

// Has reports whether the annotation carries the flag. The empty flag matches all.
func (a *DeviceAnnotation) Has(flag AnnotationFlag) bool {
	switch flag {
	case "":
		return true
	case FlagNotes:
		return strings.TrimSpace(a.Notes) != ""
	case FlagSuspended:
		return a.Suspended
	case FlagDeactivated:
		return a.Deactivated
	case FlagBlacklisted:
		return a.Blacklisted
	case FlagBYOD:
		return a.BYODSwap
	}
	return false
}

// AnnotationCounts is the per-flag tally shown on the dashboard.
type AnnotationCounts struct {
	Notes       int `json:"notes"`
	Suspended   int `json:"suspended"`
	Deactivated int `json:"deactivated"`
	Blacklisted int `json:"blacklisted"`
	BYOD        int `json:"byod"`
}

// CountAnnotations tallies flags across all annotations.
func CountAnnotations(annotations map[string]DeviceAnnotation) AnnotationCounts {
	var c AnnotationCounts
	for _, a := range annotations {
		if a.Has(FlagNotes) {
			c.Notes++
		}
		if a.Suspended {
			c.Suspended++
		}
		if a.Deactivated {
			c.Deactivated++
		}
		if a.Blacklisted {
			c.Blacklisted++
		}
		if a.BYODSwap {
			c.BYOD++
		}
	}
	return c
}
