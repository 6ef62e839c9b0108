package realtime

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"feedsync/internal/domain"
)

// schema describes how a collection's records map onto counters.
type schema struct {
	entity domain.EntityType

	// absolute lists counter columns carried on the entity row itself.
	absolute []string

	// Relation collections name the counter they move, where the target
	// entity id and the actor live in the record, and optionally the amount.
	deltaField string
	entityPath string
	actorPath  string
	amountPath string
}

var defaultSchemas = map[string]schema{
	"posts": {
		entity:   domain.EntityPost,
		absolute: []string{domain.FieldLikes, domain.FieldComments, domain.FieldShares, domain.FieldViews},
	},
	"likes": {
		entity:     domain.EntityPost,
		deltaField: domain.FieldLikes,
		entityPath: "post_id",
		actorPath:  "user_id",
	},
	"comments": {
		entity:     domain.EntityPost,
		deltaField: domain.FieldComments,
		entityPath: "post_id",
		actorPath:  "user_id",
	},
	"shares": {
		entity:     domain.EntityPost,
		deltaField: domain.FieldShares,
		entityPath: "post_id",
		actorPath:  "user_id",
	},
	"wallet": {
		entity:   domain.EntityWallet,
		absolute: []string{domain.FieldBalance},
	},
	"transactions": {
		entity:     domain.EntityWallet,
		deltaField: domain.FieldBalance,
		entityPath: "wallet_id",
		actorPath:  "user_id",
		amountPath: "amount",
	},
}

// Normalizer validates loosely typed change payloads into domain.ChangeEvent.
// Nothing past Normalize sees raw JSON.
type Normalizer struct {
	schemas map[string]schema
}

func NewNormalizer() *Normalizer {
	return &Normalizer{schemas: defaultSchemas}
}

// Collections lists the collections the normalizer understands.
func (n *Normalizer) Collections() []string {
	out := make([]string, 0, len(n.schemas))
	for c := range n.schemas {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (n *Normalizer) Knows(collection string) bool {
	_, ok := n.schemas[collection]
	return ok
}

func (n *Normalizer) Normalize(raw domain.RawEvent) (domain.ChangeEvent, error) {
	if !gjson.ValidBytes(raw.Payload) {
		return domain.ChangeEvent{}, fmt.Errorf("%w: payload is not valid JSON", domain.ErrMalformedEvent)
	}
	doc := gjson.ParseBytes(raw.Payload)
	if !doc.IsObject() {
		return domain.ChangeEvent{}, fmt.Errorf("%w: payload is not an object", domain.ErrMalformedEvent)
	}

	collection := raw.Collection
	if c := doc.Get("collection"); c.Exists() {
		if c.Type != gjson.String {
			return domain.ChangeEvent{}, fmt.Errorf("%w: collection must be a string", domain.ErrMalformedEvent)
		}
		if collection != "" && c.Str != collection {
			return domain.ChangeEvent{}, fmt.Errorf("%w: event for %q delivered on %q", domain.ErrMalformedEvent, c.Str, collection)
		}
		collection = c.Str
	}
	sc, ok := n.schemas[collection]
	if !ok {
		return domain.ChangeEvent{}, fmt.Errorf("%w: %q", domain.ErrUnknownCollection, collection)
	}

	op, err := domain.ParseOperation(doc.Get("operation").String())
	if err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}

	recordID, err := identifier(doc.Get("id"))
	if err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("%w: id: %w", domain.ErrMalformedEvent, err)
	}

	seq := doc.Get("sequence")
	if seq.Type != gjson.Number || seq.Num != math.Trunc(seq.Num) || seq.Num <= 0 {
		return domain.ChangeEvent{}, fmt.Errorf("%w: sequence must be a positive integer", domain.ErrMalformedEvent)
	}

	var ts time.Time
	if t := doc.Get("timestamp"); t.Exists() {
		ts, err = time.Parse(time.RFC3339Nano, t.String())
		if err != nil {
			return domain.ChangeEvent{}, fmt.Errorf("%w: timestamp: %w", domain.ErrMalformedEvent, err)
		}
	}

	record := doc.Get("payload")
	if !record.IsObject() {
		return domain.ChangeEvent{}, fmt.Errorf("%w: payload record missing", domain.ErrMalformedEvent)
	}

	ev := domain.ChangeEvent{
		Collection: collection,
		Operation:  op,
		RecordID:   recordID,
		Sequence:   seq.Int(),
		Timestamp:  ts,
	}

	if sc.deltaField == "" {
		err = normalizeAbsolute(&ev, sc, record)
	} else {
		err = normalizeDelta(&ev, sc, record)
	}
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	return ev, nil
}

func normalizeAbsolute(ev *domain.ChangeEvent, sc schema, record gjson.Result) error {
	ev.EntityID = ev.RecordID
	if ev.Operation == domain.OpDelete {
		return nil
	}

	for _, field := range sc.absolute {
		v := record.Get(field)
		if !v.Exists() {
			continue
		}
		if v.Type != gjson.Number {
			return fmt.Errorf("%w: %s must be numeric", domain.ErrMalformedEvent, field)
		}
		if sc.entity == domain.EntityPost && v.Num < 0 {
			return fmt.Errorf("%w: %s is negative", domain.ErrMalformedEvent, field)
		}
		if ev.Absolute == nil {
			ev.Absolute = make(map[domain.CounterKey]float64, len(sc.absolute))
		}
		ev.Absolute[domain.CounterKey{Entity: sc.entity, ID: ev.EntityID, Field: field}] = v.Num
	}
	return nil
}

func normalizeDelta(ev *domain.ChangeEvent, sc schema, record gjson.Result) error {
	entityID, err := identifier(record.Get(sc.entityPath))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrMalformedEvent, sc.entityPath, err)
	}
	ev.EntityID = entityID

	if actor := record.Get(sc.actorPath); actor.Exists() {
		ev.ActorID, err = identifier(actor)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrMalformedEvent, sc.actorPath, err)
		}
	}

	amount := 1.0
	if sc.amountPath != "" {
		v := record.Get(sc.amountPath)
		if v.Type != gjson.Number {
			return fmt.Errorf("%w: %s must be numeric", domain.ErrMalformedEvent, sc.amountPath)
		}
		amount = v.Num
	}

	switch ev.Operation {
	case domain.OpInsert:
	case domain.OpDelete:
		amount = -amount
	default:
		// Edits to a relation row do not move the counter.
		return nil
	}

	ev.Delta = &domain.CounterDelta{
		Key:    domain.CounterKey{Entity: sc.entity, ID: entityID, Field: sc.deltaField},
		Amount: amount,
	}
	return nil
}

// identifier accepts string or integer ids.
func identifier(v gjson.Result) (string, error) {
	switch v.Type {
	case gjson.String:
		if v.Str == "" {
			return "", errors.New("empty")
		}
		return v.Str, nil
	case gjson.Number:
		if v.Num != math.Trunc(v.Num) {
			return "", errors.New("not an integer")
		}
		return v.Raw, nil
	}
	return "", errors.New("missing")
}
