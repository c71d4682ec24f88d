package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatsink/pkg/models"
)

var testNow = time.UnixMilli(1_720_000_000_000)

func normalizeOnline(t *testing.T, raw string) []models.Intent {
	t.Helper()
	out, err := Payload([]byte(raw), ModeOnline, testNow)
	require.NoError(t, err)
	return out
}

func singleUpsert(t *testing.T, raw string) models.Message {
	t.Helper()
	out := normalizeOnline(t, raw)
	require.Len(t, out, 1)
	up, ok := out[0].(models.UpsertIntent)
	require.True(t, ok, "expected an upsert intent, got %T", out[0])
	return up.Msg
}

func TestSimpleMessage(t *testing.T) {
	m := singleUpsert(t, `{"type":"message","from":"111","id":"m1","text":{"body":"hi"},"timestamp":"1700000000"}`)
	require.Equal(t, "m1", m.MsgID)
	require.Equal(t, "111", m.WaID)
	require.Equal(t, "hi", m.Body)
	require.Equal(t, models.StatusSent, m.Status)
	require.False(t, m.FromMe)
	require.Equal(t, int64(1700000000000), m.TS)
}

func TestMsgIDPrecedence(t *testing.T) {
	// top-level id beats meta_msg_id beats nested message.id
	m := singleUpsert(t, `{"from":"111","id":"top","meta_msg_id":"meta","message":{"id":"nested"},"text":{"body":"x"}}`)
	require.Equal(t, "top", m.MsgID)

	m = singleUpsert(t, `{"from":"111","meta_msg_id":"meta","message":{"id":"nested"},"text":{"body":"x"}}`)
	require.Equal(t, "meta", m.MsgID)

	m = singleUpsert(t, `{"from":"111","message":{"id":"nested","mid":"mid"},"text":{"body":"x"}}`)
	require.Equal(t, "nested", m.MsgID)

	m = singleUpsert(t, `{"from":"111","message":{"mid":"mid"},"_id":"underscore","text":{"body":"x"}}`)
	require.Equal(t, "mid", m.MsgID)

	m = singleUpsert(t, `{"from":"111","_id":"underscore","raw":{"id":"rawid"},"text":{"body":"x"}}`)
	require.Equal(t, "underscore", m.MsgID)

	m = singleUpsert(t, `{"from":"111","raw":{"id":"rawid"},"text":{"body":"x"}}`)
	require.Equal(t, "rawid", m.MsgID)
}

func TestWaIDPrecedence(t *testing.T) {
	m := singleUpsert(t, `{"id":"m1","from":"aaa","wa_id":"bbb","to":"ccc","text":{"body":"x"}}`)
	require.Equal(t, "aaa", m.WaID)

	m = singleUpsert(t, `{"id":"m1","wa_id":"bbb","sender":{"wa_id":"ddd"},"text":{"body":"x"}}`)
	require.Equal(t, "bbb", m.WaID)

	m = singleUpsert(t, `{"id":"m1","sender":{"wa_id":"ddd"},"contacts":[{"wa_id":"eee"}],"text":{"body":"x"}}`)
	require.Equal(t, "ddd", m.WaID)

	m = singleUpsert(t, `{"id":"m1","contacts":[{"wa_id":"eee"}],"to":"ccc","text":{"body":"x"}}`)
	require.Equal(t, "eee", m.WaID)

	m = singleUpsert(t, `{"id":"m1","to":"ccc","text":{"body":"x"}}`)
	require.Equal(t, "ccc", m.WaID)
}

func TestBodyPrecedence(t *testing.T) {
	m := singleUpsert(t, `{"id":"m1","from":"111","text":{"body":"structured"},"body":"plain","message":{"text":"nested"}}`)
	require.Equal(t, "structured", m.Body)

	m = singleUpsert(t, `{"id":"m1","from":"111","message":{"text":"nested","caption":"cap"},"body":"plain"}`)
	require.Equal(t, "nested", m.Body)

	m = singleUpsert(t, `{"id":"m1","from":"111","body":"plain","message":{"caption":"cap"}}`)
	require.Equal(t, "plain", m.Body)

	m = singleUpsert(t, `{"id":"m1","from":"111","message":{"caption":"cap"}}`)
	require.Equal(t, "cap", m.Body)

	// media with no caption: empty body
	m = singleUpsert(t, `{"id":"m1","from":"111","image":{"link":"http://x/img.jpg"}}`)
	require.Equal(t, "", m.Body)
	require.NotNil(t, m.Media)
}

func TestStatusEventByDiscriminator(t *testing.T) {
	out := normalizeOnline(t, `{"type":"status","meta_msg_id":"m1","status":"read"}`)
	require.Len(t, out, 1)
	st, ok := out[0].(models.StatusIntent)
	require.True(t, ok)
	require.Equal(t, "m1", st.MsgID)
	require.Equal(t, models.StatusRead, st.Status)
}

func TestStatusEventByBareField(t *testing.T) {
	out := normalizeOnline(t, `{"status":"delivered","meta_msg_id":"m2"}`)
	require.Len(t, out, 1)
	st, ok := out[0].(models.StatusIntent)
	require.True(t, ok)
	require.Equal(t, "m2", st.MsgID)
	require.Equal(t, models.StatusDelivered, st.Status)
}

func TestStatusTargetPrecedence(t *testing.T) {
	out := normalizeOnline(t, `{"type":"status","meta_msg_id":"meta","id":"plain","messageId":"camel","status":"read"}`)
	require.Len(t, out, 1)
	require.Equal(t, "meta", out[0].(models.StatusIntent).MsgID)

	out = normalizeOnline(t, `{"type":"status","messageId":"camel","status":{"id":"nested"},"state":"read"}`)
	require.Len(t, out, 1)
	require.Equal(t, "camel", out[0].(models.StatusIntent).MsgID)
}

func TestStatusesArray(t *testing.T) {
	out := normalizeOnline(t, `{"statuses":[{"id":"m1","status":"delivered"},{"id":"m2","status":"read"}]}`)
	require.Len(t, out, 2)
	require.Equal(t, models.StatusDelivered, out[0].(models.StatusIntent).Status)
	require.Equal(t, "m2", out[1].(models.StatusIntent).MsgID)
}

func TestUnknownStatusValueFolds(t *testing.T) {
	out := normalizeOnline(t, `{"type":"status","id":"m1","status":"wheelie"}`)
	require.Len(t, out, 1)
	require.Equal(t, models.StatusUnknown, out[0].(models.StatusIntent).Status)
}

func TestStatusEventWithoutValueDefaultsUnknown(t *testing.T) {
	// an explicitly-classified status event with a target but no
	// status/state field is still an update, carrying "unknown"
	out := normalizeOnline(t, `{"type":"status","meta_msg_id":"m1"}`)
	require.Len(t, out, 1)
	st, ok := out[0].(models.StatusIntent)
	require.True(t, ok)
	require.Equal(t, "m1", st.MsgID)
	require.Equal(t, models.StatusUnknown, st.Status)
}

func TestMessageWithExplicitStatusStaysMessage(t *testing.T) {
	// a message payload that happens to carry a status field must not be
	// classified as a status event
	m := singleUpsert(t, `{"type":"message","from":"111","id":"m1","text":{"body":"hi"},"status":"delivered"}`)
	require.Equal(t, "m1", m.MsgID)
	require.Equal(t, models.StatusDelivered, m.Status)
}

func TestHeuristicMessageWithoutDiscriminator(t *testing.T) {
	m := singleUpsert(t, `{"from":"111","id":"m1","body":"plain text"}`)
	require.Equal(t, "m1", m.MsgID)
	require.Equal(t, "plain text", m.Body)
}

func TestEnvelopeUnwrap(t *testing.T) {
	raw := `{
	  "payload_type": "whatsapp_webhook",
	  "metaData": {
	    "entry": [{
	      "changes": [{
	        "value": {
	          "contacts": [{"wa_id": "919937320320"}],
	          "messages": [
	            {"id": "wamid.A", "text": {"body": "first"}, "timestamp": "1700000001"},
	            {"id": "wamid.B", "text": {"body": "second"}, "timestamp": "1700000002"}
	          ]
	        }
	      }, {
	        "value": {
	          "statuses": [{"id": "wamid.A", "status": "read"}]
	        }
	      }]
	    }]
	  }
	}`
	out := normalizeOnline(t, raw)
	require.Len(t, out, 3)

	up1 := out[0].(models.UpsertIntent).Msg
	require.Equal(t, "wamid.A", up1.MsgID)
	require.Equal(t, "919937320320", up1.WaID)
	require.Equal(t, "first", up1.Body)

	up2 := out[1].(models.UpsertIntent).Msg
	require.Equal(t, "wamid.B", up2.MsgID)
	require.Equal(t, "919937320320", up2.WaID)

	st := out[2].(models.StatusIntent)
	require.Equal(t, "wamid.A", st.MsgID)
	require.Equal(t, models.StatusRead, st.Status)
}

func TestOnlineDropsIDLessMessage(t *testing.T) {
	out := normalizeOnline(t, `{"from":"111","text":{"body":"no id anywhere"}}`)
	require.Len(t, out, 0)
}

func TestBatchSynthesizesPlaceholderID(t *testing.T) {
	out, err := Payload([]byte(`{"from":"111","text":{"body":"no id anywhere"}}`), ModeBatch, testNow)
	require.NoError(t, err)
	require.Len(t, out, 1)
	m := out[0].(models.UpsertIntent).Msg
	require.True(t, strings.HasPrefix(m.MsgID, "msg-"), "placeholder id, got %q", m.MsgID)
	require.Equal(t, "111", m.WaID)
}

func TestMissingWaIDDropped(t *testing.T) {
	out := normalizeOnline(t, `{"id":"m1","text":{"body":"orphan"}}`)
	require.Len(t, out, 0)
}

func TestInvalidJSON(t *testing.T) {
	_, err := Payload([]byte(`{not json`), ModeOnline, testNow)
	require.Error(t, err)

	_, err = Payload([]byte(`[1,2,3]`), ModeOnline, testNow)
	require.Error(t, err)
}

func TestTimestamps(t *testing.T) {
	// unix seconds as number
	m := singleUpsert(t, `{"id":"m1","from":"111","body":"x","timestamp":1700000000}`)
	require.Equal(t, int64(1700000000000), m.TS)

	// already milliseconds
	m = singleUpsert(t, `{"id":"m1","from":"111","body":"x","timestamp":1700000000123}`)
	require.Equal(t, int64(1700000000123), m.TS)

	// timestamp_ms short-circuits
	m = singleUpsert(t, `{"id":"m1","from":"111","body":"x","timestamp_ms":42,"timestamp":"1700000000"}`)
	require.Equal(t, int64(42), m.TS)

	// RFC3339
	m = singleUpsert(t, `{"id":"m1","from":"111","body":"x","timestamp":"2023-11-14T22:13:20Z"}`)
	require.Equal(t, int64(1700000000000), m.TS)

	// absent falls back to receive time
	m = singleUpsert(t, `{"id":"m1","from":"111","body":"x"}`)
	require.Equal(t, testNow.UnixMilli(), m.TS)

	// garbage falls back to receive time
	m = singleUpsert(t, `{"id":"m1","from":"111","body":"x","timestamp":"whenever"}`)
	require.Equal(t, testNow.UnixMilli(), m.TS)
}

func TestNumericIDsCoerced(t *testing.T) {
	m := singleUpsert(t, `{"id":12345,"from":919937320320,"body":"x"}`)
	require.Equal(t, "12345", m.MsgID)
	require.Equal(t, "919937320320", m.WaID)
}

func TestStructuredValuesNeverIDs(t *testing.T) {
	// id resolves past the object-valued candidate to the next path
	m := singleUpsert(t, `{"id":{"oops":true},"meta_msg_id":"meta","from":"111","body":"x"}`)
	require.Equal(t, "meta", m.MsgID)
}

func TestRawPayloadRetainedVerbatim(t *testing.T) {
	raw := `{"id":"m1","from":"111","body":"x","extra":{"nested":[1,2,3]}}`
	m := singleUpsert(t, raw)
	require.JSONEq(t, raw, string(m.RawPayload))
}

func TestFromMe(t *testing.T) {
	m := singleUpsert(t, `{"id":"m1","from":"111","body":"x","from_me":true}`)
	require.True(t, m.FromMe)

	m = singleUpsert(t, `{"id":"m1","from":"111","body":"x","fromMe":true}`)
	require.True(t, m.FromMe)
}
