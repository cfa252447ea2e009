package prober

import (
	"strings"
	"time"
)

const datePlaceholder = "{date}"

// Target is a single bookable item on the booking site.
type Target struct {
	ID   string
	Name string
	// URLTemplate may contain {date}, which is replaced with the as-of date (YYYY-MM-DD).
	URLTemplate string
	// Aliases are extra names chat commands may use, e.g. 영유아 for 영유아검진.
	Aliases []string
}

func (t Target) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// URL resolves the template for the calendar date asOf falls on.
func (t Target) URL(asOf time.Time) string {
	if !strings.Contains(t.URLTemplate, datePlaceholder) {
		return t.URLTemplate
	}
	return strings.ReplaceAll(t.URLTemplate, datePlaceholder, asOf.Format(time.DateOnly))
}
