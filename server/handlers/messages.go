package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"rcfeed/db"
	"rcfeed/models"
	"rcfeed/pipeline"
)

// MessageStore is the read side of the message database.
type MessageStore interface {
	List(ctx context.Context, f db.Filter) ([]db.StoredMessage, error)
	Count(ctx context.Context, f db.Filter) (int, error)
	Get(ctx context.Context, id int64) (*models.Message, error)
}

// Submitter accepts feed lines for dispatch.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) error
}

// MessagesResponse represents the API response format for messages
type MessagesResponse struct {
	Data []db.StoredMessage `json:"data"`
	Meta MessagesMeta       `json:"meta"`
}

type MessagesMeta struct {
	TotalRowCount  int `json:"totalRowCount"`
	FilterRowCount int `json:"filterRowCount"`
}

// SubmitRequest is the body of a message submission.
type SubmitRequest struct {
	Raw        string   `json:"raw"`
	Type       string   `json:"type"`
	Properties []string `json:"properties,omitempty"`
	Interested []string `json:"interested,omitempty"`
}

type Messages struct {
	store     MessageStore
	submitter Submitter
	// ctx outlives the request: submitted messages are dispatched after the
	// response is written.
	ctx context.Context
}

func NewMessages(ctx context.Context, store MessageStore, submitter Submitter) *Messages {
	return &Messages{store: store, submitter: submitter, ctx: ctx}
}

// List handles GET /api/messages
func (h *Messages) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := db.DefaultFilter()
	if sizeStr := query.Get("size"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil && size > 0 {
			filter.Limit = size
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	filter.Type = query.Get("type")
	if erroredStr := query.Get("errored"); erroredStr != "" {
		if errored, err := strconv.ParseBool(erroredStr); err == nil {
			filter.ErroredOnly = errored
		}
	}

	ctx := r.Context()
	messages, err := h.store.List(ctx, filter)
	if err != nil {
		log.Printf("Error fetching messages: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	total, err := h.store.Count(ctx, db.Filter{})
	if err != nil {
		log.Printf("Error counting messages: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	filtered, err := h.store.Count(ctx, filter)
	if err != nil {
		log.Printf("Error counting messages: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, MessagesResponse{
		Data: messages,
		Meta: MessagesMeta{TotalRowCount: total, FilterRowCount: filtered},
	})
}

// Get handles GET /api/messages/{id}
func (h *Messages) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	msg, err := h.store.Get(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("Error loading message %d: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// Submit handles POST /api/messages
func (h *Messages) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.submitter.Submit(h.ctx, pipeline.Request{
		Raw:        req.Raw,
		Type:       req.Type,
		Properties: req.Properties,
		Interested: req.Interested,
	})
	if errors.Is(err, pipeline.ErrAtCapacity) {
		http.Error(w, "Dispatcher at capacity", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		log.Printf("Error submitting message: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
