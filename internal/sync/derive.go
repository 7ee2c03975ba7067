package sync

import (
	"time"

	"birthday-sync-service/internal/hebcal"
	"birthday-sync-service/internal/store"
)

// anniversaryWindow bounds the precomputed Hebrew anniversary list. The
// planner caps at ten events; projecting one extra year absorbs entries that
// fall into the past between derivation and sync.
const anniversaryWindow = 10

// ApplyHebrewFields recomputes the derived Hebrew date fields on a birthday.
// It runs on every user write and is the only writer of these fields.
func ApplyHebrewFields(b *store.Birthday, now time.Time) {
	h := hebcal.FromGregorian(b.BirthDate, b.AfterSunset)
	b.HebrewYear = h.Year
	b.HebrewMonth = int(h.Month)
	b.HebrewDay = h.Day
	b.HebrewDateDisplay = h.String()

	anns := hebcal.ProjectAnniversaries(h, anniversaryWindow, now)
	b.HebrewAnniversaries = make([]store.HebrewAnniversary, 0, len(anns))
	for _, a := range anns {
		b.HebrewAnniversaries = append(b.HebrewAnniversaries, store.HebrewAnniversary{
			Date:       a.Gregorian,
			HebrewYear: a.HebrewYear,
		})
	}

	b.NextHebrewBirthday = nil
	if len(b.HebrewAnniversaries) > 0 {
		next := b.HebrewAnniversaries[0].Date
		b.NextHebrewBirthday = &next
	}
}
