package poller

import (
	"strings"
	"time"
)

// Config is the set of options recognized by spec §4.1. It is treated
// as immutable after NewPoller normalizes it; mutating a Config value
// after constructing a Poller from it has no effect on that Poller.
type Config struct {
	// ChainID identifies this chain instance to persistence and to
	// handler events.
	ChainID int64
	// PollingInterval is the duration between successive
	// forward-progress ticks.
	PollingInterval time.Duration
	// InterestingPrograms is the ordered set of program identifiers
	// whose logs are fetched. Empty strings are dropped and entries are
	// lower-cased before use; order is otherwise preserved.
	InterestingPrograms []string
	// MaxReorgDepth bounds how many ancestors reconciliation searches.
	// Zero is normalized to 10.
	MaxReorgDepth uint64
	// SlotHistorySize bounds how many of the most recent slot records
	// are retained per chain. Zero is normalized to 100.
	SlotHistorySize uint64
	// ReorgCheckEnabled is forced true whenever MaxReorgDepth > 0.
	ReorgCheckEnabled bool
}

// normalize returns cfg with zero-valued tunables clamped to their
// defaults and ReorgCheckEnabled forced consistent with MaxReorgDepth,
// matching the reference constructor's config mutation.
func normalize(cfg Config) Config {
	if cfg.MaxReorgDepth == 0 {
		cfg.MaxReorgDepth = 10
	}
	if cfg.SlotHistorySize == 0 {
		cfg.SlotHistorySize = 100
	}
	if cfg.MaxReorgDepth > 0 {
		cfg.ReorgCheckEnabled = true
	}
	return cfg
}

// effectivePrograms drops empty entries and lower-cases the rest,
// preserving order, per spec §4.5 step 1.
func effectivePrograms(programs []string) []string {
	out := make([]string, 0, len(programs))
	for _, p := range programs {
		if p == "" {
			continue
		}
		out = append(out, strings.ToLower(p))
	}
	return out
}
