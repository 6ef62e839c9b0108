package engine

import (
	"fmt"

	"go.uber.org/mock/gomock"

	"feedsync/internal/domain"
)

func likesKey(post string) domain.CounterKey {
	return domain.CounterKey{Entity: domain.EntityPost, ID: post, Field: domain.FieldLikes}
}

func commentsKey(post string) domain.CounterKey {
	return domain.CounterKey{Entity: domain.EntityPost, ID: post, Field: domain.FieldComments}
}

func balanceKey(wallet string) domain.CounterKey {
	return domain.CounterKey{Entity: domain.EntityWallet, ID: wallet, Field: domain.FieldBalance}
}

func likeRequest(actor, post string) Request {
	return Request{
		Key:       likesKey(post),
		ActorID:   actor,
		Delta:     1,
		ConfirmOn: domain.EventMatch{Collection: "likes", Operation: domain.OpInsert},
		Write: domain.WriteRequest{
			Collection: "likes",
			Operation:  domain.OpInsert,
			Record:     map[string]any{"post_id": post, "user_id": actor},
		},
	}
}

func unlikeRequest(actor, post string) Request {
	return Request{
		Key:       likesKey(post),
		ActorID:   actor,
		Delta:     -1,
		ConfirmOn: domain.EventMatch{Collection: "likes", Operation: domain.OpDelete},
		Write: domain.WriteRequest{
			Collection: "likes",
			Operation:  domain.OpDelete,
			Record:     map[string]any{"post_id": post, "user_id": actor},
		},
	}
}

func commentRequest(actor, post string) Request {
	return commentBodyRequest(actor, post, "nice")
}

func commentBodyRequest(actor, post, body string) Request {
	return Request{
		Key:       commentsKey(post),
		ActorID:   actor,
		Delta:     1,
		ConfirmOn: domain.EventMatch{Collection: "comments", Operation: domain.OpInsert},
		Write: domain.WriteRequest{
			Collection: "comments",
			Operation:  domain.OpInsert,
			Record:     map[string]any{"post_id": post, "user_id": actor, "body": body},
		},
	}
}

func withdrawRequest(actor, wallet string, amount float64) Request {
	return Request{
		Key:       balanceKey(wallet),
		ActorID:   actor,
		Delta:     -amount,
		ConfirmOn: domain.EventMatch{Collection: "transactions", Operation: domain.OpInsert},
		Write: domain.WriteRequest{
			Collection: "transactions",
			Operation:  domain.OpInsert,
			Record:     map[string]any{"wallet_id": wallet, "user_id": actor, "amount": -amount, "kind": "withdrawal"},
		},
	}
}

func transferRequest(actor, wallet, to string, amount float64) Request {
	return Request{
		Key:       balanceKey(wallet),
		ActorID:   actor,
		Delta:     -amount,
		ConfirmOn: domain.EventMatch{Collection: "transactions", Operation: domain.OpInsert},
		Write: domain.WriteRequest{
			Collection: "transactions",
			Operation:  domain.OpInsert,
			Record: map[string]any{
				"wallet_id":              wallet,
				"user_id":                actor,
				"amount":                 -amount,
				"kind":                   "transfer",
				"counterparty_wallet_id": to,
			},
		},
	}
}

func spendEvent(seq int64, actor, wallet string, amount float64) domain.ChangeEvent {
	return domain.ChangeEvent{
		Collection: "transactions",
		Operation:  domain.OpInsert,
		RecordID:   fmt.Sprintf("tx-%d", seq),
		EntityID:   wallet,
		ActorID:    actor,
		Sequence:   seq,
		Delta:      &domain.CounterDelta{Key: balanceKey(wallet), Amount: -amount},
	}
}

func likeEvent(seq int64, actor, post string, op domain.Operation) domain.ChangeEvent {
	amount := 1.0
	if op == domain.OpDelete {
		amount = -1
	}
	return domain.ChangeEvent{
		Collection: "likes",
		Operation:  op,
		RecordID:   fmt.Sprintf("like-%s-%s", post, actor),
		EntityID:   post,
		ActorID:    actor,
		Sequence:   seq,
		Delta:      &domain.CounterDelta{Key: likesKey(post), Amount: amount},
	}
}

func postEvent(seq int64, post string, likes float64) domain.ChangeEvent {
	return domain.ChangeEvent{
		Collection: "posts",
		Operation:  domain.OpUpdate,
		RecordID:   post,
		EntityID:   post,
		Sequence:   seq,
		Absolute:   map[domain.CounterKey]float64{likesKey(post): likes},
	}
}

type writeOpMatcher struct {
	op domain.Operation
}

func writeOp(op domain.Operation) gomock.Matcher {
	return writeOpMatcher{op: op}
}

func (m writeOpMatcher) Matches(x any) bool {
	req, ok := x.(domain.WriteRequest)
	return ok && req.Operation == m.op
}

func (m writeOpMatcher) String() string {
	return fmt.Sprintf("write with operation %s", m.op)
}
