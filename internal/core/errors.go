package core

import (
	"fmt"
	"sort"
	"strings"
)

// InputError is a caller mistake caught before any write: a missing required
// party, a malformed line item, or an attempt to mutate an assigned number.
// Resubmitting corrected input fully recovers.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
	}
	return "invalid input: " + e.Message
}

func NewInputError(field, message string) *InputError {
	return &InputError{Field: field, Message: message}
}

// NotFoundError covers lookups of documents, parties, or products that do not
// exist or belong to another tenant. The two cases are deliberately
// indistinguishable to prevent cross-tenant enumeration.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Ref)
}

func NewNotFoundError(entity string, ref any) *NotFoundError {
	return &NotFoundError{Entity: entity, Ref: fmt.Sprint(ref)}
}

// ConflictError is raised when counter allocation fails even after the
// one-shot legacy index repair. It is fatal to the current request.
type ConflictError struct {
	TenantID int
	Prefix   string
	Cause    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("counter conflict for tenant %d prefix %q: %v", e.TenantID, e.Prefix, e.Cause)
}

func (e *ConflictError) Unwrap() error { return e.Cause }

// PartialApplicationError reports a stock delta map that was only partially
// applied: some products were adjusted, the listed ones were not. Callers
// must treat the operation as a degraded success, not a full failure.
type PartialApplicationError struct {
	Applied []int
	Failed  map[int]error
}

func (e *PartialApplicationError) Error() string {
	ids := make([]int, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("product %d: %v", id, e.Failed[id]))
	}
	return fmt.Sprintf("stock deltas partially applied (%d ok, %d failed): %s",
		len(e.Applied), len(e.Failed), strings.Join(parts, "; "))
}

// FailedProducts returns the ids of products whose deltas were not applied,
// in ascending order.
func (e *PartialApplicationError) FailedProducts() []int {
	ids := make([]int, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
