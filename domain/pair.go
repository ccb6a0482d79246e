// Package domain contains core concepts of the matchmaking chat system.
// This file defines pair and room canonicalization rules.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PairKey is the canonical (min, max) ordering of two user identities.
// It is the uniqueness key for conversations and relationship reports,
// so the same pair always maps to the same stored rows regardless of
// which side initiated.
type PairKey struct {
	Low  int64
	High int64
}

// NewPairKey builds a canonical pair key from two numeric user ids.
func NewPairKey(a, b int64) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

// ParsePairKey coerces two string identities into a canonical pair key.
// Returns an error if either side is not a valid integer.
func ParsePairKey(a, b string) (PairKey, error) {
	ai, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	if err != nil {
		return PairKey{}, fmt.Errorf("non-numeric participant id %q: %w", a, err)
	}
	bi, err := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if err != nil {
		return PairKey{}, fmt.Errorf("non-numeric participant id %q: %w", b, err)
	}
	return NewPairKey(ai, bi), nil
}

// RoomFor derives the canonical room label for two user identities.
// Numeric ids are ordered numerically ("3_5" for both (3,5) and (5,3));
// anything else falls back to a lexical sort so opaque ids still land
// in a stable room.
func RoomFor(a, b string) string {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		if ai > bi {
			ai, bi = bi, ai
		}
		return fmt.Sprintf("%d_%d", ai, bi)
	}
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// SplitRoom extracts the first two participants encoded in a room label.
// Returns ok=false when the label does not carry at least two parts.
func SplitRoom(roomID string) (string, string, bool) {
	parts := strings.Split(roomID, "_")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
