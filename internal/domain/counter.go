package domain

import "fmt"

type EntityType string

const (
	EntityPost   EntityType = "post"
	EntityWallet EntityType = "wallet"
)

const (
	FieldLikes    = "likes_count"
	FieldComments = "comments_count"
	FieldShares   = "shares_count"
	FieldViews    = "views_count"
	FieldBalance  = "balance"
)

// EntityRef identifies one entity; mutations are serialized per EntityRef.
type EntityRef struct {
	Type EntityType
	ID   string
}

func (e EntityRef) String() string {
	return fmt.Sprintf("%s/%s", e.Type, e.ID)
}

// CounterKey identifies one numeric field of one entity.
type CounterKey struct {
	Entity EntityType
	ID     string
	Field  string
}

func (k CounterKey) Ref() EntityRef {
	return EntityRef{Type: k.Entity, ID: k.ID}
}

func (k CounterKey) String() string {
	return fmt.Sprintf("%s/%s.%s", k.Entity, k.ID, k.Field)
}

// CounterSnapshot is an authoritative counter value read from the store.
// Sequence is the store change sequence the value is current as of.
type CounterSnapshot struct {
	Key      CounterKey
	Value    float64
	Sequence int64
}

// CounterView is the display-time projection of a counter.
type CounterView struct {
	Key       CounterKey
	Confirmed float64
	Pending   float64
	Displayed float64
}
