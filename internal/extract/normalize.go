package extract

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonNumericRe = regexp.MustCompile(`[^\d.]`)
	digitsRe     = regexp.MustCompile(`\d+`)
)

// dateLayouts are tried in order; the first that parses wins. The unpadded
// forms ("2.1.2006") accept both padded and unpadded day/month input.
var dateLayouts = []string{
	"2.1.2006",
	"2006-1-2",
	"1/2/2006",
	"2/1/2006",
	"2006/1/2",
	"2006.1.2",
	"2-1-2006",
	"1-2-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"2 January 2006",
	"2.1.06",
	"1/2/06",
}

// normalize coerces a parsed model output object into Details. Every field
// is coerced independently; an unusable value becomes null rather than
// failing the whole result.
func normalize(raw map[string]any) *Details {
	return &Details{
		AgreementValue:     normalizeValue(raw["agreement_value"]),
		AgreementStartDate: normalizeDate(raw["agreement_start_date"]),
		AgreementEndDate:   normalizeDate(raw["agreement_end_date"]),
		RenewalNoticeDays:  normalizeNoticeDays(raw["renewal_notice_days"]),
		PartyOne:           normalizeParty(raw["party_one"]),
		PartyTwo:           normalizeParty(raw["party_two"]),
	}
}

// normalizeValue coerces the agreement value to a number. Strings are
// stripped down to digits and decimal points before parsing, so currency
// symbols and thousands separators are tolerated.
func normalizeValue(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		cleaned := nonNumericRe.ReplaceAllString(n, "")
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			slog.Warn("could not parse agreement value as number", "value", n)
			return nil
		}
		return &f
	default:
		return nil
	}
}

// normalizeDate re-renders a recognized date as YYYY-MM-DD. An unrecognized
// non-empty string passes through unchanged with a warning: downstream
// consumers see what the model produced rather than silently losing it.
func normalizeDate(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			out := t.Format("2006-01-02")
			return &out
		}
	}

	slog.Warn("could not normalize date string, passing through unchanged", "date", s)
	return &s
}

// normalizeNoticeDays coerces the notice period to a whole number of days.
// Strings fall back to the first run of digits ("60 days" yields 60).
func normalizeNoticeDays(v any) *int {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return nil
		}
		i := int(n)
		return &i
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return &i
		}
		if m := digitsRe.FindString(n); m != "" {
			if i, err := strconv.Atoi(m); err == nil {
				return &i
			}
		}
		slog.Warn("could not parse renewal notice days", "value", n)
		return nil
	default:
		return nil
	}
}

func normalizeParty(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
