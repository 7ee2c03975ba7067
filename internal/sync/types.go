package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type System string

const (
	SystemGregorian System = "gregorian"
	SystemHebrew    System = "hebrew"
)

// Event is one desired calendar event for a birthday: a single anniversary
// year in a single calendar system. It is a transient value, never persisted;
// only its Key survives in the event map.
type Event struct {
	System      System
	Year        int
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Reminders   []time.Duration
	TenantID    string
	BirthdayID  string
}

// Key is the stable identity used to match this event against a previously
// created external event across repeated syncs.
func (e Event) Key() string {
	return fmt.Sprintf("%s_%d", e.System, e.Year)
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s (%s)", e.Key(), e.Title, e.Start.Format("2006-01-02"))
}

// ParseKey splits an identity key back into its system and year.
func ParseKey(key string) (System, int, bool) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 {
		return "", 0, false
	}
	sys := System(key[:idx])
	if sys != SystemGregorian && sys != SystemHebrew {
		return "", 0, false
	}
	year, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return sys, year, true
}

// DeterministicID derives the external event id for a (birthday, key) pair.
// It must stay stable across process restarts: a re-created event lands on
// the same id, which is what makes conflict recovery possible. Truncated
// lowercase hex keeps it inside the conservative id alphabet providers allow.
func DeterministicID(birthdayID, key string) string {
	sum := sha256.Sum256([]byte(birthdayID + "_" + key))
	return hex.EncodeToString(sum[:])[:32]
}

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

// operation is one queued external call within a reconciliation pass.
type operation struct {
	kind    opKind
	key     string
	eventID string // stored external id for update/delete
	event   Event  // zero for delete
}
