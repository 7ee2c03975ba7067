// Package hebcal implements Hebrew (lunisolar) calendar arithmetic: conversion
// from Gregorian dates, projection of Hebrew anniversaries back onto the
// Gregorian calendar, and the month/leap-year rules both depend on.
//
// Dates are exchanged as rata die day numbers (days since Gregorian
// 0001-01-01 = day 1), which keeps the two calendars decoupled.
package hebcal

import (
	"fmt"
	"time"
)

type Month int

// Months are numbered Nisan=1 through Elul=6, Tishrei=7 through Adar=12.
// In a leap year month 12 is Adar I and Adar II is month 13.
const (
	Nisan Month = iota + 1
	Iyar
	Sivan
	Tammuz
	Av
	Elul
	Tishrei
	Cheshvan
	Kislev
	Tevet
	Shevat
	Adar
	AdarII
)

// Day 1 of Tishrei, year 1, as a rata die day number.
const hebrewEpoch = -1373427

type Date struct {
	Year  int
	Month Month
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%d %s %d", d.Day, MonthName(d.Year, d.Month), d.Year)
}

// MonthName returns the display name of a month, disambiguating Adar I/II in
// leap years.
func MonthName(year int, m Month) string {
	if m == Adar && IsLeapYear(year) {
		return "Adar I"
	}
	switch m {
	case Nisan:
		return "Nisan"
	case Iyar:
		return "Iyar"
	case Sivan:
		return "Sivan"
	case Tammuz:
		return "Tammuz"
	case Av:
		return "Av"
	case Elul:
		return "Elul"
	case Tishrei:
		return "Tishrei"
	case Cheshvan:
		return "Cheshvan"
	case Kislev:
		return "Kislev"
	case Tevet:
		return "Tevet"
	case Shevat:
		return "Shevat"
	case Adar:
		return "Adar"
	case AdarII:
		return "Adar II"
	}
	return "?"
}

// IsLeapYear reports whether the Hebrew year contains the leap month Adar I.
func IsLeapYear(year int) bool {
	return (7*year+1)%19 < 7
}

func MonthsInYear(year int) int {
	if IsLeapYear(year) {
		return 13
	}
	return 12
}

// elapsedDays returns the number of days from the Hebrew epoch to the mean
// new year of the given year, including the molad-based postponement.
func elapsedDays(year int) int {
	months := (235*year - 234) / 19
	parts := 12084 + 13753*months
	days := 29*months + parts/25920
	if (3*(days+1))%7 < 3 {
		days++
	}
	return days
}

// newYearDelay applies the two remaining Rosh Hashanah postponement rules,
// which keep year lengths inside the legal 353..385 day range.
func newYearDelay(year int) int {
	ny1 := elapsedDays(year)
	ny2 := elapsedDays(year + 1)
	if ny2-ny1 == 356 {
		return 2
	}
	ny0 := elapsedDays(year - 1)
	if ny1-ny0 == 382 {
		return 1
	}
	return 0
}

func newYearRD(year int) int {
	return hebrewEpoch + elapsedDays(year) + newYearDelay(year)
}

func DaysInYear(year int) int {
	return newYearRD(year+1) - newYearRD(year)
}

func longCheshvan(year int) bool {
	n := DaysInYear(year)
	return n == 355 || n == 385
}

func shortKislev(year int) bool {
	n := DaysInYear(year)
	return n == 353 || n == 383
}

func DaysInMonth(year int, m Month) int {
	switch m {
	case Iyar, Tammuz, Elul, Tevet, AdarII:
		return 29
	case Adar:
		if !IsLeapYear(year) {
			return 29
		}
		return 30 // Adar I
	case Cheshvan:
		if longCheshvan(year) {
			return 30
		}
		return 29
	case Kislev:
		if shortKislev(year) {
			return 29
		}
		return 30
	default:
		return 30
	}
}

// monthOrder lists the year's months in civil order, Tishrei first.
func monthOrder(year int) []Month {
	order := make([]Month, 0, 13)
	last := Month(MonthsInYear(year))
	for m := Tishrei; m <= last; m++ {
		order = append(order, m)
	}
	for m := Nisan; m <= Elul; m++ {
		order = append(order, m)
	}
	return order
}

func toRD(d Date) int {
	rd := newYearRD(d.Year)
	for _, m := range monthOrder(d.Year) {
		if m == d.Month {
			break
		}
		rd += DaysInMonth(d.Year, m)
	}
	return rd + d.Day - 1
}

func fromRD(rd int) Date {
	year := (rd - hebrewEpoch) / 366
	for newYearRD(year+1) <= rd {
		year++
	}
	days := rd - newYearRD(year)
	for _, m := range monthOrder(year) {
		dim := DaysInMonth(year, m)
		if days < dim {
			return Date{Year: year, Month: m, Day: days + 1}
		}
		days -= dim
	}
	// Unreachable: days within a year always land in some month.
	return Date{Year: year, Month: Elul, Day: 29}
}

func gregorianToRD(year, month, day int) int {
	prior := year - 1
	rd := 365*prior + prior/4 - prior/100 + prior/400
	rd += (367*month - 362) / 12
	if month > 2 {
		if gregorianLeap(year) {
			rd--
		} else {
			rd -= 2
		}
	}
	return rd + day
}

func gregorianLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func rdToGregorian(rd int) time.Time {
	year := rd / 366
	for gregorianToRD(year+1, 1, 1) <= rd {
		year++
	}
	doy := rd - gregorianToRD(year, 1, 1) + 1
	return time.Date(year, time.January, doy, 0, 0, 0, 0, time.UTC)
}

// FromGregorian converts a Gregorian calendar day to its Hebrew date. The
// Hebrew day begins at sunset, so with afterSunset the result is the day
// following the naive conversion.
func FromGregorian(t time.Time, afterSunset bool) Date {
	y, m, d := t.Date()
	rd := gregorianToRD(y, int(m), d)
	if afterSunset {
		rd++
	}
	return fromRD(rd)
}

// ToGregorian returns the Gregorian day on which the Hebrew date falls
// (the daytime portion; the Hebrew day started the previous evening).
func ToGregorian(d Date) time.Time {
	return rdToGregorian(toRD(d))
}

type Anniversary struct {
	Gregorian  time.Time
	HebrewYear int
}

// resolveInYear maps a birth (month, day) onto a target year, applying the
// anniversary fallback rules when the exact date does not exist there:
// a 30th falls back to the 29th of the same month, Adar II falls back to
// Adar in a common year, and plain Adar of a common birth year falls back
// to Adar II in a leap year. Adar I keeps its month number in common years.
func resolveInYear(year int, birth Date) (Date, bool) {
	m := birth.Month
	switch {
	case m == AdarII && !IsLeapYear(year):
		m = Adar
	case m == Adar && !IsLeapYear(birth.Year) && IsLeapYear(year):
		m = AdarII
	}
	if int(m) > MonthsInYear(year) {
		return Date{}, false
	}
	d := birth.Day
	if d > DaysInMonth(year, m) {
		if d != 30 {
			return Date{}, false
		}
		d = 29
	}
	if d > DaysInMonth(year, m) {
		return Date{}, false
	}
	return Date{Year: year, Month: m, Day: d}, true
}

// ProjectAnniversaries returns the Gregorian dates of the birth date's
// anniversaries in count+1 consecutive Hebrew years, starting with the first
// anniversary on or after now. Years in which the date cannot be resolved are
// skipped, so the result may be shorter than count+1; callers must not assume
// one entry per year.
func ProjectAnniversaries(birth Date, count int, now time.Time) []Anniversary {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := FromGregorian(today, false).Year
	if resolved, ok := resolveInYear(start, birth); ok && ToGregorian(resolved).Before(today) {
		start++
	}

	out := make([]Anniversary, 0, count+1)
	for year := start; year <= start+count; year++ {
		resolved, ok := resolveInYear(year, birth)
		if !ok {
			continue
		}
		out = append(out, Anniversary{Gregorian: ToGregorian(resolved), HebrewYear: year})
	}
	return out
}
