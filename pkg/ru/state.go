// Package ru implements adaptive request-unit budget management for paged
// document reads. It watches the request charge reported for each page and
// adjusts the next page size and an inter-page delay to keep steady-state
// throughput near the RU ceiling without tripping server-side throttling.
package ru

import (
	"time"
)

// Tuning constants for page size adaptation.
const (
	// ShrinkFactor is applied to the page size when a page exceeds the budget.
	ShrinkFactor = 0.7

	// GrowFactor is applied to the page size when a page costs less than
	// half the budget and the page size is below its ceiling.
	GrowFactor = 1.2

	// FloorPageSize is the minimum page size after shrinking.
	FloorPageSize = 10

	// DelayPerExcessRU is the sleep applied per RU over budget.
	DelayPerExcessRU = 100 * time.Millisecond

	// growThresholdFraction of the budget under which page size may grow.
	growThresholdFraction = 0.5
)

// State is the RU budget state threaded through a page loop. It is a plain
// value: Adjust takes a State and returns the next one, so the decision
// logic stays independent of any network code.
type State struct {
	// MaxRU is the per-page RU budget.
	MaxRU float64

	// PageSize is the max-item-count to request for the next page.
	PageSize int

	// MaxPageSize is the configured page size ceiling.
	MaxPageSize int

	// LastDelay is the delay applied after the most recent page.
	LastDelay time.Duration
}

// NewState creates the initial budget state for one export run.
func NewState(maxRU float64, pageSize, maxPageSize int) State {
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if pageSize < FloorPageSize {
		pageSize = FloorPageSize
	}
	return State{
		MaxRU:       maxRU,
		PageSize:    pageSize,
		MaxPageSize: maxPageSize,
	}
}

// OverBudget reports whether the given page charge exceeded the budget.
func (s State) OverBudget(charge float64) bool {
	return charge > s.MaxRU
}

// Adjust returns the next budget state and the delay to apply before the
// next page fetch, given the RU charge of the page just fetched:
//
//   - charge over budget: shrink page size by 30% (floor 10) and delay
//     100ms per RU over budget
//   - charge under half budget with page size below the ceiling: grow page
//     size by 20%, capped at the ceiling
//   - otherwise: unchanged, no delay
func Adjust(s State, charge float64) (State, time.Duration) {
	next := s

	switch {
	case charge > s.MaxRU:
		shrunk := int(float64(s.PageSize) * ShrinkFactor)
		if shrunk < FloorPageSize {
			shrunk = FloorPageSize
		}
		next.PageSize = shrunk
		delay := time.Duration(charge-s.MaxRU) * DelayPerExcessRU
		next.LastDelay = delay
		return next, delay

	case charge < s.MaxRU*growThresholdFraction && s.PageSize < s.MaxPageSize:
		grown := int(float64(s.PageSize) * GrowFactor)
		if grown > s.MaxPageSize {
			grown = s.MaxPageSize
		}
		next.PageSize = grown
		next.LastDelay = 0
		return next, 0

	default:
		next.LastDelay = 0
		return next, 0
	}
}
