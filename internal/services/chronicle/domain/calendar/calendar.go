// Package calendar models the simulation's monthly game clock.
package calendar

import "fmt"

// Start is the first month of every game; history browsing never goes earlier.
var Start = Date{Year: 2025, Month: 1}

// Date is one simulated month.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// FromIndex converts an Index back into a Date.
func FromIndex(index int) Date {
	zeroBased := index - 1
	year := zeroBased / 12
	month := zeroBased%12 + 1
	if month <= 0 {
		month += 12
		year--
	}
	return Date{Year: year, Month: month}
}

// Index returns a monotonic month number, Year*12 + Month.
func (d Date) Index() int {
	return d.Year*12 + d.Month
}

// Valid reports whether Month is within 1..12.
func (d Date) Valid() bool {
	return d.Month >= 1 && d.Month <= 12
}

// Normalize folds an out-of-range month into the neighbouring years.
func (d Date) Normalize() Date {
	if d.Valid() {
		return d
	}
	return FromIndex(d.Index())
}

// Compare returns -1, 0 or 1 as d is before, equal to, or after other.
func (d Date) Compare(other Date) int {
	switch a, b := d.Index(), other.Index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Index() < other.Index() }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Index() > other.Index() }

// Next returns the following month.
func (d Date) Next() Date { return FromIndex(d.Index() + 1) }

// Prev returns the preceding month.
func (d Date) Prev() Date { return FromIndex(d.Index() - 1) }

// Clamp bounds d to [lo, hi].
func (d Date) Clamp(lo, hi Date) Date {
	if d.Before(lo) {
		return lo
	}
	if d.After(hi) {
		return hi
	}
	return d
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
}
