// Package reclass contains the pure business logic for manual reclassification
// and group resolution.
// Guards are pure functions that evaluate preconditions without side effects.
package reclass

import (
	"fmt"
	"strings"

	"github.com/example/triage/internal/core/rules"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ReclassifyContext provides context for reclassification guards.
type ReclassifyContext struct {
	ClassificationID string
	Exists           bool
	NewPrimaryClass  string
	Actor            string
}

// CanReclassify evaluates whether a classification can be overridden.
// Rules:
// - Classification must exist
// - New primary class must be a known class
// - Actor must be identified
func CanReclassify(ctx ReclassifyContext) GuardResult {
	if !ctx.Exists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("classification %s not found", ctx.ClassificationID),
		}
	}

	if !rules.PrimaryClass(ctx.NewPrimaryClass).Valid() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("invalid primary class %q", ctx.NewPrimaryClass),
		}
	}

	if strings.TrimSpace(ctx.Actor) == "" {
		return GuardResult{
			Allowed: false,
			Reason:  "actor is required for manual reclassification",
		}
	}

	return GuardResult{Allowed: true}
}

// IsNoop reports whether a reclassification leaves the class pair unchanged.
// Sub classes compare after trimming so whitespace edits are not changes.
func IsNoop(oldPrimary, oldSub, newPrimary, newSub string) bool {
	return oldPrimary == newPrimary && strings.TrimSpace(oldSub) == strings.TrimSpace(newSub)
}

// GroupStateContext provides context for resolve and reopen guards.
type GroupStateContext struct {
	GroupID  string
	Exists   bool
	Resolved bool
}

// CanResolve evaluates whether a group can be resolved.
// Rules:
// - Group must exist
// Resolving an already resolved group is allowed; callers treat it as a no-op.
func CanResolve(ctx GroupStateContext) GuardResult {
	if !ctx.Exists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("group %s not found", ctx.GroupID),
		}
	}
	return GuardResult{Allowed: true}
}

// CanReopen evaluates whether a group can be reopened.
// Rules:
// - Group must exist
// - Group must be resolved
func CanReopen(ctx GroupStateContext) GuardResult {
	if !ctx.Exists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("group %s not found", ctx.GroupID),
		}
	}

	if !ctx.Resolved {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("group %s is not resolved", ctx.GroupID),
		}
	}

	return GuardResult{Allowed: true}
}
