package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func transfer(to string) PendingMutation {
	return PendingMutation{
		ActorID:   "u1",
		Key:       CounterKey{Entity: EntityWallet, ID: "w1", Field: FieldBalance},
		Delta:     -10,
		ConfirmOn: EventMatch{Collection: "transactions", Operation: OpInsert},
		Write: WriteRequest{
			Collection: "transactions",
			Operation:  OpInsert,
			Record:     map[string]any{"wallet_id": "w1", "amount": -10.0, "counterparty_wallet_id": to},
		},
	}
}

func TestPendingMutation_SameIntent(t *testing.T) {
	a, b, c := transfer("w2"), transfer("w2"), transfer("w3")

	assert.True(t, a.SameIntent(&b))
	assert.False(t, a.SameIntent(&c), "different counterparty")

	c.Write.Record["counterparty_wallet_id"] = "w2"
	c.Delta = -20
	assert.False(t, a.SameIntent(&c), "different amount")
}
