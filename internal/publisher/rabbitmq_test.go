package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/domain"
)

func TestNewNoticeMessage(t *testing.T) {
	id := uuid.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	at := now.Add(-time.Second)

	msg := newNoticeMessage(domain.Notice{
		MutationID:       id,
		ActorID:          "u1",
		Entity:           domain.EntityRef{Type: domain.EntityWallet, ID: "w1"},
		Reason:           domain.ReasonInsufficientFunds,
		Message:          "Not enough balance to complete this payment.",
		BalanceAffecting: true,
		Amount:           -12.5,
		At:               at,
	}, now)

	assert.Equal(t, id.String(), msg.MutationID)
	assert.Equal(t, "wallet", msg.EntityType)
	assert.Equal(t, "w1", msg.EntityID)
	assert.Equal(t, "insufficient_funds", msg.Reason)
	assert.True(t, msg.BalanceAffecting)
	assert.Equal(t, time.UTC, msg.Timestamp.Location())
	assert.True(t, msg.OccurredAt.Equal(at))

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Equal(t, -12.5, fields["amount"])
	assert.NotContains(t, fields, "cause")
}

func TestNewNoticeMessage_DefaultsOccurredAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := newNoticeMessage(domain.Notice{
		Entity: domain.EntityRef{Type: domain.EntityPost, ID: "p1"},
		Reason: domain.ReasonTimeout,
	}, now)

	assert.Equal(t, now, msg.OccurredAt)
	assert.False(t, msg.BalanceAffecting)
}
