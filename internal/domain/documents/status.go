// Package documents holds what the order families share: the transition
// table type and the repository contract.
package documents

import (
	"millstock/internal/core/apperror"
)

// Transitions lists, per source status, the statuses an order may move to.
// Each family declares one table; legality is never decided elsewhere.
type Transitions[S ~string] map[S][]S

// Allowed reports whether from -> to is a legal edge.
func (t Transitions[S]) Allowed(from, to S) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Check returns a StateTransition error when from -> to is not legal.
func (t Transitions[S]) Check(entity string, from, to S) error {
	if !t.Allowed(from, to) {
		return apperror.NewStateTransition(entity, string(from), string(to))
	}
	return nil
}

// IsTerminal reports whether nothing can follow s.
func (t Transitions[S]) IsTerminal(s S) bool {
	return len(t[s]) == 0
}

// StatusChange is the audit summary of a status move.
func StatusChange[S ~string](from, to S) map[string]any {
	return map[string]any{"status": map[string]any{"old": string(from), "new": string(to)}}
}
