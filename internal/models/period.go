package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodKind distinguishes the token formats a Period can be parsed from.
// Periods of different kinds cannot be ordered against each other.
type PeriodKind int

const (
	// PeriodMonth is a calendar month token such as "2020-03".
	PeriodMonth PeriodKind = iota + 1
	// PeriodIndex is a plain integer token such as "42".
	PeriodIndex
)

func (k PeriodKind) String() string {
	switch k {
	case PeriodMonth:
		return "month"
	case PeriodIndex:
		return "index"
	default:
		return "unknown"
	}
}

// Period is a totally ordered time bucket. Ordinal is the position on the
// kind's own axis: months since year 0 for PeriodMonth, the integer itself
// for PeriodIndex. Consecutive months have consecutive ordinals.
type Period struct {
	Token   string
	Kind    PeriodKind
	Ordinal int64
}

// ParsePeriod parses a "YYYY-MM" month token or an integer token.
func ParsePeriod(token string) (Period, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Period{}, fmt.Errorf("period must not be empty")
	}
	if t, err := time.Parse("2006-01", token); err == nil {
		return Period{
			Token:   token,
			Kind:    PeriodMonth,
			Ordinal: int64(t.Year())*12 + int64(t.Month()) - 1,
		}, nil
	}
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return Period{Token: token, Kind: PeriodIndex, Ordinal: n}, nil
	}
	return Period{}, fmt.Errorf("period %q is neither a YYYY-MM month nor an integer", token)
}

// Comparable reports whether p and o live on the same ordinal axis.
func (p Period) Comparable(o Period) bool {
	return p.Kind == o.Kind
}

// Before reports whether p precedes o. Both must be Comparable.
func (p Period) Before(o Period) bool {
	return p.Ordinal < o.Ordinal
}

func (p Period) String() string {
	return p.Token
}

// MarshalText writes the original token so JSON output shows "2020-03"
// rather than the internal ordinal.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.Token), nil
}
