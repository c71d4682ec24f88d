// Package ingest drives one payload through normalize, reconcile and
// fanout. Both the webhook path and the batch replay path go through the
// same Processor so the two can never disagree on extraction precedence.
package ingest

import (
	"context"
	"time"

	"chatsink/pkg/fanout"
	"chatsink/pkg/logger"
	"chatsink/pkg/models"
	"chatsink/pkg/normalize"
	"chatsink/pkg/reconcile"
	"chatsink/pkg/telemetry"
	"chatsink/pkg/utils"
)

// Result summarizes one payload's processing.
type Result struct {
	// Applied counts intents committed to the store.
	Applied int
	// Dropped counts payloads or entries that could not be normalized.
	Dropped int
	// Skipped counts recognized no-ops (status for an unknown message).
	Skipped int
}

// Processor applies payloads. B receives a notification for every committed
// change; a nil B disables fanout (batch replay tooling).
type Processor struct {
	B fanout.Broadcaster
}

// Process ingests one raw payload. In online mode unparseable input is a
// terminal drop (the provider must not retry a shape we will never
// understand) and only store failures return an error; batch mode is strict
// about malformed JSON so a corrupt dump file is visible, not thinned.
func (p *Processor) Process(ctx context.Context, raw []byte, mode normalize.Mode) (Result, error) {
	var res Result
	intents, err := normalize.Payload(raw, mode, time.Now())
	if err != nil {
		if mode == normalize.ModeBatch {
			telemetry.PayloadsTotal.WithLabelValues(mode.String(), "error").Inc()
			return res, err
		}
		logger.Warn("payload_unparseable", "error", err)
		res.Dropped++
		telemetry.PayloadsTotal.WithLabelValues(mode.String(), "dropped").Inc()
		return res, nil
	}
	if len(intents) == 0 {
		res.Dropped++
		telemetry.PayloadsTotal.WithLabelValues(mode.String(), "dropped").Inc()
		return res, nil
	}

	for _, in := range intents {
		rec, err := reconcile.Apply(ctx, in)
		if err != nil {
			telemetry.PayloadsTotal.WithLabelValues(mode.String(), "error").Inc()
			return res, err
		}
		if rec == nil {
			res.Skipped++
			continue
		}
		res.Applied++
		p.notify(in, *rec)
	}
	outcome := "applied"
	if res.Applied == 0 {
		outcome = "skipped"
	}
	telemetry.PayloadsTotal.WithLabelValues(mode.String(), outcome).Inc()
	return res, nil
}

// Compose creates a locally-authored outgoing message, bypassing the
// normalizer entirely.
func (p *Processor) Compose(ctx context.Context, waID, body string) (*models.Message, error) {
	m := models.Message{
		MsgID:  utils.GenID(),
		WaID:   waID,
		FromMe: true,
		Body:   body,
		Status: models.StatusSent,
		TS:     time.Now().UnixMilli(),
	}
	rec, err := reconcile.Apply(ctx, models.UpsertIntent{Msg: m})
	if err != nil {
		return nil, err
	}
	p.notify(models.UpsertIntent{Msg: m}, *rec)
	return rec, nil
}

// notify emits the outward event for a committed change. Fire-and-forget:
// the ingestion response never waits on subscriber delivery.
func (p *Processor) notify(in models.Intent, rec models.Message) {
	switch in.(type) {
	case models.UpsertIntent:
		telemetry.IntentsTotal.WithLabelValues("upsert").Inc()
	case models.StatusIntent:
		telemetry.IntentsTotal.WithLabelValues("status").Inc()
	}
	if p.B == nil {
		return
	}
	switch in.(type) {
	case models.UpsertIntent:
		telemetry.FanoutTotal.WithLabelValues(fanout.EventMessageCreated).Inc()
		go p.B.Broadcast(fanout.EventMessageCreated, rec.WaID, rec)
	case models.StatusIntent:
		telemetry.FanoutTotal.WithLabelValues(fanout.EventMessageStatusUpdated).Inc()
		go p.B.Broadcast(fanout.EventMessageStatusUpdated, rec.WaID, fanout.StatusEvent{
			MsgID:  rec.MsgID,
			WaID:   rec.WaID,
			Status: string(rec.Status),
		})
	}
}
