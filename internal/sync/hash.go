package sync

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"birthday-sync-service/internal/store"
)

// ContentHash fingerprints the fields that affect generated events. When the
// stored hash matches and the record is SYNCED, the reconciler skips all
// external work. Group membership is sorted so ordering noise does not defeat
// the short-circuit.
func ContentHash(b *store.Birthday) string {
	groups := append([]string(nil), b.GroupIDs...)
	sort.Strings(groups)

	payload := struct {
		FirstName   string   `json:"first_name"`
		LastName    string   `json:"last_name"`
		BirthDate   string   `json:"birth_date"`
		AfterSunset bool     `json:"after_sunset"`
		Notes       string   `json:"notes"`
		Preference  string   `json:"preference"`
		Archived    bool     `json:"archived"`
		GroupIDs    []string `json:"group_ids"`
	}{
		FirstName:   b.FirstName,
		LastName:    b.LastName,
		BirthDate:   b.BirthDate.Format("2006-01-02"),
		AfterSunset: b.AfterSunset,
		Notes:       b.Notes,
		Preference:  string(b.Preference),
		Archived:    b.Archived,
		GroupIDs:    groups,
	}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}
