package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"log/slog"

	"github.com/gorilla/mux"

	"chatsink/pkg/ingest"
	"chatsink/pkg/normalize"
)

// default cap on a single webhook payload
const defaultMaxBody = 5 << 20

// RegisterWebhook registers the raw payload intake.
func RegisterWebhook(r *mux.Router, proc *ingest.Processor, maxBody int64) {
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	r.HandleFunc("/webhook", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBody))
		if err != nil {
			http.Error(w, `{"error":"payload too large"}`, http.StatusRequestEntityTooLarge)
			return
		}
		res, err := proc.Process(req.Context(), body, normalize.ModeOnline)
		if err != nil {
			// store failure: non-2xx so the provider retries the event later
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		slog.Info("webhook_processed", "applied", res.Applied, "dropped", res.Dropped, "skipped", res.Skipped)
		_ = json.NewEncoder(w).Encode(struct {
			OK      bool `json:"ok"`
			Applied int  `json:"applied"`
			Dropped int  `json:"dropped"`
			Skipped int  `json:"skipped"`
		}{OK: true, Applied: res.Applied, Dropped: res.Dropped, Skipped: res.Skipped})
	}).Methods(http.MethodPost)
}
