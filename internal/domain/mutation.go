package domain

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

type MutationState string

const (
	StatePending    MutationState = "pending"
	StateConfirmed  MutationState = "confirmed"
	StateRejected   MutationState = "rejected"
	StateRolledBack MutationState = "rolled_back"
	StateCancelled  MutationState = "cancelled"
)

func (s MutationState) Terminal() bool {
	return s != StatePending
}

// WriteRequest is the authoritative write a mutation issues against the store.
// Record holds column values for inserts and updates, or the match columns for deletes.
type WriteRequest struct {
	Collection string
	Operation  Operation
	RecordID   string
	Record     map[string]any
}

// EventMatch names the change event that confirms a mutation.
type EventMatch struct {
	Collection string
	Operation  Operation
}

type PendingMutation struct {
	ID           uuid.UUID
	Key          CounterKey
	ActorID      string
	Delta        float64
	ConfirmOn    EventMatch
	Write        WriteRequest
	State        MutationState
	SubmittedAt  time.Time
	DispatchedAt time.Time
	Dispatched   bool
	Acked        bool
	Err          error
}

// Inverse reports whether other undoes m: same actor and counter, opposite
// delta, inverse confirming operation.
func (m *PendingMutation) Inverse(other *PendingMutation) bool {
	return m.ActorID == other.ActorID &&
		m.Key == other.Key &&
		m.Delta == -other.Delta &&
		m.ConfirmOn.Collection == other.ConfirmOn.Collection &&
		m.ConfirmOn.Operation != "" &&
		m.ConfirmOn.Operation.Inverse() == other.ConfirmOn.Operation
}

// SameIntent reports whether other repeats m: the same change issuing the
// same authoritative write. Two transfers of one amount to different wallets
// are different intents.
func (m *PendingMutation) SameIntent(other *PendingMutation) bool {
	return m.ActorID == other.ActorID &&
		m.Key == other.Key &&
		m.Delta == other.Delta &&
		m.ConfirmOn == other.ConfirmOn &&
		reflect.DeepEqual(m.Write, other.Write)
}

type NoticeReason string

const (
	ReasonRejected          NoticeReason = "rejected"
	ReasonTimeout           NoticeReason = "timeout"
	ReasonInsufficientFunds NoticeReason = "insufficient_funds"
)

// Notice is a user-facing failure report.
type Notice struct {
	MutationID       uuid.UUID
	ActorID          string
	Entity           EntityRef
	Reason           NoticeReason
	Message          string
	BalanceAffecting bool
	Amount           float64
	Cause            string
	At               time.Time
}
