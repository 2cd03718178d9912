// Package signature derives the deterministic grouping key of a failure.
// This is part of the Functional Core - no I/O, only pure functions.
package signature

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/example/triage/internal/core/evidence"
)

// Length is the number of hex characters in a signature.
const Length = 12

// Canonical builds the string a signature is computed from.
func Canonical(ev evidence.Normalized) string {
	parts := make([]string, 0, len(ev.FileReferences)+1)
	parts = append(parts, ev.ErrorType)
	parts = append(parts, ev.FileReferences...)
	return strings.Join(parts, "|")
}

// Generate returns the signature of normalized evidence.
// XXH64 is used so the value is identical across processes and runtimes.
func Generate(ev evidence.Normalized) string {
	return digest(Canonical(ev))
}

// FromText normalizes raw failure text and returns its signature.
func FromText(message, stackTrace string) string {
	return Generate(evidence.Normalize(message, stackTrace))
}

// Valid reports whether s has the shape of a signature.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func digest(canonical string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(canonical))[:Length]
}
