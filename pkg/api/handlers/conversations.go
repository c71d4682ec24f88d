package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/gorilla/mux"

	"chatsink/pkg/ingest"
	"chatsink/pkg/models"
	"chatsink/pkg/store"
)

// RegisterConversations registers the read surface plus message compose.
func RegisterConversations(r *mux.Router, proc *ingest.Processor) {
	r.HandleFunc("/api/conversations", listConversations).Methods(http.MethodGet)
	r.HandleFunc("/api/conversations/{wa_id}/messages", listMessages).Methods(http.MethodGet)
	r.HandleFunc("/api/conversations/{wa_id}/messages", composeMessage(proc)).Methods(http.MethodPost)
}

func listConversations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	convs, err := store.ListConversationSummaries()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	slog.Info("conversations_list", "count", len(convs))
	_ = json.NewEncoder(w).Encode(struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}{Conversations: convs})
}

func listMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	waID := mux.Vars(r)["wa_id"]
	msgs, err := store.ListConversationMessages(waID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	// Optional limit keeps only the most recent N
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(msgs) {
			msgs = msgs[len(msgs)-lim:]
		}
	}
	slog.Info("messages_list", "wa_id", waID, "count", len(msgs))
	_ = json.NewEncoder(w).Encode(struct {
		WaID     string           `json:"wa_id"`
		Messages []models.Message `json:"messages"`
	}{WaID: waID, Messages: msgs})
}

func composeMessage(proc *ingest.Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		waID := mux.Vars(r)["wa_id"]
		var in struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(in.Body) == "" {
			http.Error(w, `{"error":"body required"}`, http.StatusBadRequest)
			return
		}
		m, err := proc.Compose(r.Context(), waID, in.Body)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		slog.Info("message_composed", "wa_id", waID, "msg_id", m.MsgID)
		_ = json.NewEncoder(w).Encode(m)
	}
}
