package hebcal

import "time"

// Zodiac signs are a fixed lookup in both systems: Gregorian signs span two
// calendar months, Hebrew signs map one-to-one onto months (Adar I and II
// share Pisces).

var hebrewZodiac = map[Month]string{
	Nisan:    "Aries",
	Iyar:     "Taurus",
	Sivan:    "Gemini",
	Tammuz:   "Cancer",
	Av:       "Leo",
	Elul:     "Virgo",
	Tishrei:  "Libra",
	Cheshvan: "Scorpio",
	Kislev:   "Sagittarius",
	Tevet:    "Capricorn",
	Shevat:   "Aquarius",
	Adar:     "Pisces",
	AdarII:   "Pisces",
}

func HebrewZodiac(m Month) string {
	return hebrewZodiac[m]
}

// start day of each sign within its start month, January first.
var gregorianZodiac = []struct {
	startDay int
	sign     string
}{
	{20, "Aquarius"},    // Jan 20
	{19, "Pisces"},      // Feb 19
	{21, "Aries"},       // Mar 21
	{20, "Taurus"},      // Apr 20
	{21, "Gemini"},      // May 21
	{21, "Cancer"},      // Jun 21
	{23, "Leo"},         // Jul 23
	{23, "Virgo"},       // Aug 23
	{23, "Libra"},       // Sep 23
	{23, "Scorpio"},     // Oct 23
	{22, "Sagittarius"}, // Nov 22
	{22, "Capricorn"},   // Dec 22
}

func GregorianZodiac(t time.Time) string {
	m := int(t.Month()) - 1
	if t.Day() >= gregorianZodiac[m].startDay {
		return gregorianZodiac[m].sign
	}
	// before the sign boundary the previous month's sign still runs
	prev := (m + 11) % 12
	return gregorianZodiac[prev].sign
}
