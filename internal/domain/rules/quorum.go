// Package rules contains the pure calculation logic for the sleep vote.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"math"
	"time"
)

// MaxEligible bounds the eligible-player count accepted by RequiredCount.
// Anything above it is treated as corrupt input and disables the quorum.
const MaxEligible = 1 << 20

// RequiredCount returns how many sleepers a world with the given number of
// eligible players needs before the night is skipped.
// The result is ceil(eligible * percentage / 100), so 50% of 3 is 2.
// A zero result means the quorum path is disabled for this evaluation.
func RequiredCount(eligible int, percentage float64) int {
	if eligible <= 0 || eligible > MaxEligible {
		return 0
	}
	if math.IsNaN(percentage) || percentage <= 0 || percentage > 100 {
		return 0
	}
	// Multiply before dividing: 10*70/100 is exactly 7, 10*(70/100) is not.
	return int(math.Ceil(float64(eligible) * percentage / 100))
}

// QuorumReached reports whether enough players sleep. A required count of
// zero never reaches quorum.
func QuorumReached(sleeping, required int) bool {
	return required > 0 && sleeping >= required
}

// TimedOut reports whether a sleeper has been in bed long enough to force a skip.
func TimedOut(elapsed, timeout time.Duration) bool {
	return elapsed >= timeout
}
