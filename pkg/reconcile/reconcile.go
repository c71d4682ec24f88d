// Package reconcile applies normalized intents against the store. Upserts
// are idempotent by message id; status intents are targeted field merges
// that never create phantom records.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"chatsink/pkg/logger"
	"chatsink/pkg/models"
	"chatsink/pkg/store"
)

// Apply commits one intent and returns the resulting canonical record.
// A nil record with a nil error means the intent was a recognized no-op
// (status change for a message that does not exist). Store failures
// propagate so the caller can signal the provider to retry.
func Apply(ctx context.Context, in models.Intent) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch it := in.(type) {
	case models.UpsertIntent:
		return applyUpsert(it)
	case models.StatusIntent:
		return applyStatus(it)
	default:
		return nil, fmt.Errorf("unknown intent type %T", in)
	}
}

func applyUpsert(it models.UpsertIntent) (*models.Message, error) {
	m := it.Msg
	prev, err := store.GetMessage(m.MsgID)
	switch {
	case err == nil:
		// re-delivery overwrites every canonical field; if the payload
		// re-points the message at another conversation the old index
		// entry must go so no ghost remains
		if prev.WaID != m.WaID && prev.WaID != "" {
			logger.Warn("conversation_moved", "msg_id", m.MsgID, "from", prev.WaID, "to", m.WaID)
			if derr := store.DeleteConvIndex(prev.WaID, m.MsgID); derr != nil {
				return nil, derr
			}
		}
	case errors.Is(err, store.ErrNotFound):
		// fresh create
	default:
		return nil, err
	}
	if err := store.PutMessage(m); err != nil {
		return nil, err
	}
	logger.Info("message_reconciled", "msg_id", m.MsgID, "wa_id", m.WaID, "status", string(m.Status))
	return &m, nil
}

func applyStatus(it models.StatusIntent) (*models.Message, error) {
	cur, err := store.GetMessage(it.MsgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// status-before-create is not supported; drop quietly
			logger.Debug("status_for_unknown_message", "msg_id", it.MsgID)
			return nil, nil
		}
		return nil, err
	}
	if it.Status.Rank() < cur.Status.Rank() {
		// late re-delivery can regress the lifecycle; applied as-is, the
		// provider's latest word wins
		logger.Warn("status_regression", "msg_id", it.MsgID, "from", string(cur.Status), "to", string(it.Status))
	}
	cur.Status = it.Status
	if err := store.PutMessage(cur); err != nil {
		return nil, err
	}
	logger.Info("status_reconciled", "msg_id", it.MsgID, "status", string(it.Status))
	return &cur, nil
}
