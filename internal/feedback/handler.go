// Package feedback serves the POST /api/feedback endpoint.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/store"
)

// Allowed sentiments.
const (
	SentimentHappy   = "happy"
	SentimentUnhappy = "unhappy"
)

// MaxCommentLength bounds the stored comment.
const MaxCommentLength = 2000

const (
	thanksMessage  = "Thank you for your feedback!"
	genericFailure = "Something went wrong. Please try again later."
)

// Submission is the request body.
type Submission struct {
	Sentiment string `json:"sentiment"`
	Comment   string `json:"comment"`
	Page      string `json:"page,omitempty"`
}

// Response is the body of every reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Recorder stores accepted feedback. *store.Store satisfies it.
type Recorder interface {
	SaveFeedback(ctx context.Context, f store.Feedback) (store.Feedback, error)
}

// Validate trims s in place and reports the first problem found. Sentiment
// must match exactly.
func Validate(s *Submission) error {
	s.Sentiment = strings.TrimSpace(s.Sentiment)
	s.Comment = strings.TrimSpace(s.Comment)
	s.Page = strings.TrimSpace(s.Page)

	switch {
	case s.Sentiment == "" && s.Comment == "":
		return invalid(ErrorInvalidInput, "sentiment and comment are required")
	case s.Sentiment == "":
		return invalid(ErrorInvalidInput, "sentiment is required")
	case s.Comment == "":
		return invalid(ErrorInvalidInput, "comment is required")
	case s.Sentiment != SentimentHappy && s.Sentiment != SentimentUnhappy:
		return invalid(ErrorInvalidSentiment, `sentiment must be "happy" or "unhappy"`)
	case len([]rune(s.Comment)) > MaxCommentLength:
		return invalid(ErrorInvalidInput, "comment is too long")
	}
	return nil
}

// Handler implements the feedback endpoint.
type Handler struct {
	recorder     Recorder
	bus          bus.Bus
	logger       *log.Logger
	maxBodyBytes int64
}

// NewHandler builds a handler. b may be nil.
func NewHandler(recorder Recorder, b bus.Bus, logger *log.Logger) (*Handler, error) {
	if recorder == nil {
		return nil, errors.New("feedback: recorder is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if b == nil {
		b = bus.NewNullBus(logger)
	}
	return &Handler{
		recorder:     recorder,
		bus:          b,
		logger:       logger,
		maxBodyBytes: 64 * 1024,
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Printf("panic handling feedback: %v", rec)
			writeJSON(w, http.StatusInternalServerError, Response{Message: genericFailure})
		}
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, Response{Message: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer r.Body.Close()

	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "request body must be a JSON object"})
		return
	}
	if err := Validate(&sub); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			h.logger.Printf("validate feedback: %v", err)
			writeJSON(w, http.StatusInternalServerError, Response{Message: genericFailure})
			return
		}
		writeJSON(w, http.StatusBadRequest, Response{Message: verr.Reason})
		return
	}

	saved, err := h.recorder.SaveFeedback(r.Context(), store.Feedback{
		Sentiment: sub.Sentiment,
		Comment:   sub.Comment,
		Page:      sub.Page,
	})
	if err != nil {
		h.logger.Printf("store feedback: %v", err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: genericFailure})
		return
	}

	// Best-effort publish, no-op on NullBus
	if err := h.bus.PublishFeedback(r.Context(), bus.FeedbackMessage{
		FeedbackID: saved.ID,
		Sentiment:  saved.Sentiment,
		Comment:    saved.Comment,
		Page:       saved.Page,
		Timestamp:  saved.CreatedAt.Unix(),
	}); err != nil {
		h.logger.Printf("publish feedback %s: %v", saved.ID, err)
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Message: thanksMessage})
	h.logger.Printf("accepted feedback id=%s sentiment=%s page=%q dur=%s",
		saved.ID, saved.Sentiment, saved.Page, time.Since(start))
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
