package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"chatsink/pkg/logger"
	"chatsink/pkg/models"
)

var db *pebble.DB

// ErrNotFound is returned when no message exists for a given id.
var ErrNotFound = errors.New("message not found")

// Key layout:
//
//	msg:<msgID>          -> canonical message JSON (primary, unique by id)
//	conv:<waID>:<msgID>  -> "" (conversation membership index)
const (
	msgPrefix  = "msg:"
	convPrefix = "conv:"
)

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func msgKey(msgID string) []byte {
	return []byte(msgPrefix + msgID)
}

func convKey(waID, msgID string) []byte {
	return []byte(convPrefix + waID + ":" + msgID)
}

// PutMessage writes the canonical record under its message id and keeps the
// conversation membership index in step. Writes are synced; the upsert
// semantics (create vs. overwrite) live in the reconcile package, this is a
// plain keyed write.
func PutMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if m.MsgID == "" {
		return fmt.Errorf("message id required")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	wb := db.NewBatch()
	defer wb.Close()
	if err := wb.Set(msgKey(m.MsgID), data, nil); err != nil {
		return err
	}
	if m.WaID != "" {
		if err := wb.Set(convKey(m.WaID, m.MsgID), nil, nil); err != nil {
			return err
		}
	}
	if err := db.Apply(wb, pebble.Sync); err != nil {
		logger.Error("put_message_failed", "msg_id", m.MsgID, "error", err)
		return err
	}
	logger.Debug("message_put", "msg_id", m.MsgID, "wa_id", m.WaID)
	return nil
}

// GetMessage returns the canonical record for a message id, or ErrNotFound.
func GetMessage(msgID string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(msgKey(msgID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return m, ErrNotFound
		}
		return m, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid stored message %s: %w", msgID, err)
	}
	return m, nil
}

// DeleteConvIndex removes a stale conversation index entry. Used when an
// upsert re-points a message at a different conversation.
func DeleteConvIndex(waID, msgID string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete(convKey(waID, msgID), pebble.Sync)
}

// ListConversationMessages returns all messages for a conversation sorted by
// timestamp ascending (ties broken by message id for a stable order).
func ListConversationMessages(waID string) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte(convPrefix + waID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.Message, 0)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		msgID := string(iter.Key()[len(prefix):])
		m, gerr := GetMessage(msgID)
		if gerr != nil {
			if errors.Is(gerr, ErrNotFound) {
				// dangling index entry; skip
				logger.Warn("conv_index_dangling", "wa_id", waID, "msg_id", msgID)
				continue
			}
			return nil, gerr
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TS != out[j].TS {
			return out[i].TS < out[j].TS
		}
		return out[i].MsgID < out[j].MsgID
	})
	return out, nil
}

// ListConversationSummaries scans all messages and computes one summary per
// conversation: the max-timestamp message plus a count, ordered by that
// timestamp descending. The aggregation is recomputed on every call so it
// can never drift from the stored records.
func ListConversationSummaries() ([]models.ConversationSummary, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte(msgPrefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	byConv := map[string]*models.ConversationSummary{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if uerr := json.Unmarshal(iter.Value(), &m); uerr != nil {
			return nil, fmt.Errorf("invalid stored message at %s: %w", iter.Key(), uerr)
		}
		s, ok := byConv[m.WaID]
		if !ok {
			byConv[m.WaID] = &models.ConversationSummary{WaID: m.WaID, LastMessage: m, Count: 1}
			continue
		}
		s.Count++
		if m.TS > s.LastMessage.TS || (m.TS == s.LastMessage.TS && m.MsgID > s.LastMessage.MsgID) {
			s.LastMessage = m
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	out := make([]models.ConversationSummary, 0, len(byConv))
	for _, s := range byConv {
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastMessage.TS != out[j].LastMessage.TS {
			return out[i].LastMessage.TS > out[j].LastMessage.TS
		}
		return out[i].WaID < out[j].WaID
	})
	return out, nil
}
