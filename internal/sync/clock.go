package sync

import "time"

// Clock abstracts time.Now() so reconciliation windows and pruning cutoffs
// are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}
