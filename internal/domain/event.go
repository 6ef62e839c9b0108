package domain

import (
	"fmt"
	"strings"
	"time"
)

type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ParseOperation accepts the store's INSERT/UPDATE/DELETE spelling in any case.
func ParseOperation(s string) (Operation, error) {
	switch Operation(strings.ToLower(strings.TrimSpace(s))) {
	case OpInsert:
		return OpInsert, nil
	case OpUpdate:
		return OpUpdate, nil
	case OpDelete:
		return OpDelete, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Inverse returns the operation that undoes op. Updates have no inverse.
func (op Operation) Inverse() Operation {
	switch op {
	case OpInsert:
		return OpDelete
	case OpDelete:
		return OpInsert
	}
	return ""
}

// RawEvent is an undecoded message from a change feed.
type RawEvent struct {
	Collection string
	Payload    []byte
}

// CounterDelta is a relative change carried by a relation collection
// (one like row, one transaction row).
type CounterDelta struct {
	Key    CounterKey
	Amount float64
}

// ChangeEvent is a validated notification of a write on a watched collection.
type ChangeEvent struct {
	Collection string
	Operation  Operation
	RecordID   string
	EntityID   string
	ActorID    string
	Sequence   int64
	Timestamp  time.Time

	// Absolute holds counter columns delivered with their new value.
	Absolute map[CounterKey]float64
	// Delta is set for relation collections.
	Delta *CounterDelta
}

// DedupKey identifies a delivery for duplicate suppression.
func (e ChangeEvent) DedupKey() string {
	return fmt.Sprintf("%s:%d", e.Collection, e.Sequence)
}

// EventOutcome reports what the engine did with an event.
type EventOutcome string

const (
	OutcomeConfirmed EventOutcome = "confirmed"
	OutcomeApplied   EventOutcome = "applied"
	OutcomeDuplicate EventOutcome = "duplicate"
	OutcomeStale     EventOutcome = "stale"
	OutcomeIgnored   EventOutcome = "ignored"
)
