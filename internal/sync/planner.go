package sync

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"birthday-sync-service/internal/hebcal"
	"birthday-sync-service/internal/store"
)

// reminder offsets before the event start, fixed for all generated events.
var reminderOffsets = []time.Duration{24 * time.Hour, time.Hour}

// hebrewEventCap limits how many precomputed Hebrew anniversaries turn into
// events; the stored list may be longer.
const hebrewEventCap = 10

// Planner computes the full desired event set for one birthday. It is pure
// apart from the clock: same inputs and same day produce the same events.
type Planner struct {
	clock       Clock
	windowYears int
}

func NewPlanner(clock Clock, windowYears int) *Planner {
	return &Planner{clock: clock, windowYears: windowYears}
}

// BuildEvents returns every event that should exist for the birthday, in both
// calendar systems, over the rolling window. An archived birthday yields an
// empty set, which the reconciler reads as "delete everything".
func (p *Planner) BuildEvents(b *store.Birthday, tenant *store.Tenant, groups []*store.Group, wishlist []*store.WishlistItem) []Event {
	if b.Archived {
		return nil
	}

	pref := effectivePreference(b, groups, tenant)
	description := buildDescription(b, groups, wishlist)
	now := p.clock.Now()

	var out []Event

	if pref == store.PreferenceGregorian || pref == store.PreferenceBoth {
		for year := now.Year(); year <= now.Year()+p.windowYears; year++ {
			age := year - b.BirthDate.Year()
			// time.Date normalizes Feb 29 to Mar 1 in common years.
			start := time.Date(year, b.BirthDate.Month(), b.BirthDate.Day(), 0, 0, 0, 0, time.UTC)
			out = append(out, Event{
				System:      SystemGregorian,
				Year:        year,
				Title:       fmt.Sprintf("🎂 %s (%d)", b.FullName(), age),
				Description: description,
				Start:       start,
				End:         start.AddDate(0, 0, 1),
				Reminders:   reminderOffsets,
				TenantID:    b.TenantID,
				BirthdayID:  b.ID,
			})
		}
	}

	if pref == store.PreferenceHebrew || pref == store.PreferenceBoth {
		for i, a := range b.HebrewAnniversaries {
			if i >= hebrewEventCap {
				break
			}
			age := a.HebrewYear - b.HebrewYear
			out = append(out, Event{
				System:      SystemHebrew,
				Year:        a.HebrewYear,
				Title:       fmt.Sprintf("✡️ %s (%d)", b.FullName(), age),
				Description: description,
				Start:       a.Date,
				End:         a.Date.AddDate(0, 0, 1),
				Reminders:   reminderOffsets,
				TenantID:    b.TenantID,
				BirthdayID:  b.ID,
			})
		}
	}

	return out
}

// effectivePreference resolves record override, then group default, then
// tenant default, then both.
func effectivePreference(b *store.Birthday, groups []*store.Group, tenant *store.Tenant) store.CalendarPreference {
	if b.Preference != store.PreferenceInherit {
		return b.Preference
	}
	for _, g := range groups {
		if g.Preference != store.PreferenceInherit {
			return g.Preference
		}
	}
	if tenant != nil && tenant.Preference != store.PreferenceInherit {
		return tenant.Preference
	}
	return store.PreferenceBoth
}

var priorityRank = map[store.WishlistPriority]int{
	store.PriorityHigh:   0,
	store.PriorityMedium: 1,
	store.PriorityLow:    2,
}

// buildDescription assembles the shared description block: wishlist, birth
// dates, groups, notes, and the zodiac annotation for both systems.
func buildDescription(b *store.Birthday, groups []*store.Group, wishlist []*store.WishlistItem) string {
	var sb strings.Builder

	if len(wishlist) > 0 {
		items := append([]*store.WishlistItem(nil), wishlist...)
		sort.SliceStable(items, func(i, j int) bool {
			return priorityRank[items[i].Priority] < priorityRank[items[j].Priority]
		})
		sb.WriteString("Wishlist:\n")
		for _, it := range items {
			fmt.Fprintf(&sb, "- %s (%s)\n", it.Title, it.Priority)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Birthday: %s", b.BirthDate.Format("January 2, 2006"))
	if b.AfterSunset {
		sb.WriteString(" (after sunset)")
	}
	sb.WriteString("\n")
	if b.HebrewDateDisplay != "" {
		fmt.Fprintf(&sb, "Hebrew date: %s\n", b.HebrewDateDisplay)
	}

	if len(groups) > 0 {
		names := make([]string, 0, len(groups))
		for _, g := range groups {
			names = append(names, g.Name)
		}
		fmt.Fprintf(&sb, "Groups: %s\n", strings.Join(names, ", "))
	}

	if b.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", b.Notes)
	}

	fmt.Fprintf(&sb, "Zodiac: %s / %s (Hebrew)",
		hebcal.GregorianZodiac(b.BirthDate),
		hebcal.HebrewZodiac(hebcal.Month(b.HebrewMonth)))

	return sb.String()
}
