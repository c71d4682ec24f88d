package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chatsink/pkg/fanout"
	"chatsink/pkg/ingest"
	"chatsink/pkg/models"
	"chatsink/pkg/store"
)

func newTestAPI(t *testing.T) (http.Handler, *fanout.Hub) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })
	hub := fanout.NewHub()
	proc := &ingest.Processor{B: hub}
	return Handler(proc, hub, 0), hub
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func getJSON(t *testing.T, h http.Handler, path string, out any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
}

func TestWebhookIngestAndRead(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := postJSON(t, h, "/webhook", `{"type":"message","from":"111","id":"m1","text":{"body":"hi"},"timestamp":"1700000000"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var ack struct {
		OK      bool `json:"ok"`
		Applied int  `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
	require.True(t, ack.OK)
	require.Equal(t, 1, ack.Applied)

	var msgs struct {
		WaID     string           `json:"wa_id"`
		Messages []models.Message `json:"messages"`
	}
	getJSON(t, h, "/api/conversations/111/messages", &msgs)
	require.Equal(t, "111", msgs.WaID)
	require.Len(t, msgs.Messages, 1)
	require.Equal(t, "hi", msgs.Messages[0].Body)
}

func TestWebhookUnparseableStillAcks(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := postJSON(t, h, "/webhook", `{garbage`)
	require.Equal(t, http.StatusOK, rr.Code)
	var ack struct {
		OK      bool `json:"ok"`
		Dropped int  `json:"dropped"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
	require.True(t, ack.OK)
	require.Equal(t, 1, ack.Dropped)
}

func TestWebhookBodyLimit(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })
	h := Handler(&ingest.Processor{}, fanout.NewHub(), 16)

	rr := postJSON(t, h, "/webhook", `{"id":"m1","from":"111","body":"`+strings.Repeat("x", 64)+`"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestConversationsOrdering(t *testing.T) {
	h, _ := newTestAPI(t)

	for _, body := range []string{
		`{"id":"a1","from":"111","body":"first","timestamp":1000}`,
		`{"id":"b1","from":"222","body":"newest","timestamp":9000}`,
		`{"id":"a2","from":"111","body":"second","timestamp":2000}`,
	} {
		rr := postJSON(t, h, "/webhook", body)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	var out struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	getJSON(t, h, "/api/conversations", &out)
	require.Len(t, out.Conversations, 2)
	require.Equal(t, "222", out.Conversations[0].WaID)
	require.Equal(t, "111", out.Conversations[1].WaID)
	require.Equal(t, 2, out.Conversations[1].Count)
	require.Equal(t, "a2", out.Conversations[1].LastMessage.MsgID)
}

func TestListMessagesLimit(t *testing.T) {
	h, _ := newTestAPI(t)

	for _, body := range []string{
		`{"id":"a1","from":"111","body":"one","timestamp":1000}`,
		`{"id":"a2","from":"111","body":"two","timestamp":2000}`,
		`{"id":"a3","from":"111","body":"three","timestamp":3000}`,
	} {
		postJSON(t, h, "/webhook", body)
	}

	var out struct {
		Messages []models.Message `json:"messages"`
	}
	getJSON(t, h, "/api/conversations/111/messages?limit=2", &out)
	require.Len(t, out.Messages, 2)
	require.Equal(t, "a2", out.Messages[0].MsgID)
	require.Equal(t, "a3", out.Messages[1].MsgID)
}

func TestComposeMessage(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := postJSON(t, h, "/api/conversations/111/messages", `{"body":"hello there"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var m models.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	require.True(t, m.FromMe)
	require.Equal(t, "111", m.WaID)
	require.Equal(t, models.StatusSent, m.Status)

	rr = postJSON(t, h, "/api/conversations/111/messages", `{"body":"   "}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebsocketFeed(t *testing.T) {
	h, _ := newTestAPI(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	// give the server a moment to register the subscriber
	time.Sleep(100 * time.Millisecond)

	rr := postJSON(t, h, "/webhook", `{"type":"message","from":"111","id":"m1","text":{"body":"hi"}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var ev fanout.Event
	require.NoError(t, wsjson.Read(ctx, c, &ev))
	require.Equal(t, fanout.EventMessageCreated, ev.Event)
	require.Equal(t, "111", ev.WaID)
}
