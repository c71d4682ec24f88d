package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"log/slog"

	"chatsink/pkg/httpx"
	"chatsink/pkg/ingest"
	"chatsink/pkg/normalize"
)

// Intake is the transport-independent webhook handler used by the optional
// fasthttp fast-intake listener. It mirrors the /webhook route exactly: same
// limits, same ack shape, same error mapping.
func Intake(proc *ingest.Processor, maxBody int64) httpx.HandlerFunc {
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return func(w httpx.ResponseWriter, r *httpx.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost || r.Path != "/webhook" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil || int64(len(body)) > maxBody {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			_, _ = w.Write([]byte(`{"error":"payload too large"}`))
			return
		}
		res, err := proc.Process(r.Ctx, body, normalize.ModeOnline)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"` + err.Error() + `"}`))
			return
		}
		slog.Info("fast_intake_processed", "applied", res.Applied, "dropped", res.Dropped, "skipped", res.Skipped)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(writerOnly{w}).Encode(struct {
			OK      bool `json:"ok"`
			Applied int  `json:"applied"`
			Dropped int  `json:"dropped"`
			Skipped int  `json:"skipped"`
		}{OK: true, Applied: res.Applied, Dropped: res.Dropped, Skipped: res.Skipped})
	}
}

type writerOnly struct{ w httpx.ResponseWriter }

func (wo writerOnly) Write(b []byte) (int, error) { return wo.w.Write(b) }
