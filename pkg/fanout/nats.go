package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"chatsink/pkg/config"
	"chatsink/pkg/logger"
)

// NATSBroadcaster mirrors committed changes onto a JetStream stream so
// external consumers (other instances, archival, bots) can follow along.
// Subjects are one-per-conversation: <prefix>.<wa_id>.
type NATSBroadcaster struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// NewNATSBroadcaster connects, ensures the stream exists and returns a
// ready publisher.
func NewNATSBroadcaster(cfg config.NATSConfig) (*NATSBroadcaster, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	stream := cfg.Stream
	if stream == "" {
		stream = "CHATSINK"
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "chatsink.events"
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := js.Stream(ctx, stream); err != nil {
		logger.Info("nats_stream_creating", "stream", stream)
		_, cerr := js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        stream,
			Description: "Applied message and status changes",
			Subjects:    []string{fmt.Sprintf("%s.>", prefix)},
			MaxAge:      24 * time.Hour,
			Storage:     jetstream.FileStorage,
		})
		if cerr != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %q: %w", stream, cerr)
		}
	}
	logger.Info("nats_fanout_ready", "url", url, "stream", stream, "subject_prefix", prefix)
	return &NATSBroadcaster{nc: nc, js: js, prefix: prefix}, nil
}

// Broadcast publishes the event; failures are logged, never propagated, to
// keep fanout fire-and-forget.
func (b *NATSBroadcaster) Broadcast(event, waID string, payload any) {
	data, err := json.Marshal(Event{Event: event, WaID: waID, Payload: payload})
	if err != nil {
		logger.Error("nats_marshal_failed", "event", event, "error", err)
		return
	}
	subject := fmt.Sprintf("%s.%s.%s", b.prefix, waID, event)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		logger.Error("nats_publish_failed", "subject", subject, "error", err)
		return
	}
	logger.Debug("nats_published", "subject", subject)
}

// Close closes the underlying connection.
func (b *NATSBroadcaster) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
