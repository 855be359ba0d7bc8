package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	msgEmptyMessage  = "Message cannot be empty"
	msgChatFailed    = "An error occurred processing your request"
	msgIndexFailed   = "Error indexing document"
	msgInvalidBody   = "Invalid request body"
	msgInvalidDocArg = "text, source and a non-negative integer doc_id are required"
)

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

type chatResponse struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

type indexRequest struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	DocID  *uint64 `json:"doc_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": serviceName,
		"version": serviceVersion,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, msgEmptyMessage)
		return
	}

	result, err := s.pipeline.Answer(r.Context(), req.Message, req.Context)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Chat error")
		writeError(w, http.StatusInternalServerError, msgChatFailed)
		return
	}

	if s.history != nil {
		if _, err := s.history.Record(r.Context(), req.UserID, req.Message, result); err != nil {
			log.Warn().Err(err).Msg("Failed to record chat history")
		}
	}

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:     result.Answer,
		Sources:    sources,
		Confidence: result.Confidence,
	})
}

// handleIndexDocument accepts text, source and doc_id as query parameters or
// as a JSON body.
func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := parseIndexRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidDocArg)
		return
	}

	if err := s.pipeline.IndexDocument(r.Context(), req.Text, req.Source, *req.DocID); err != nil {
		log.Error().Err(err).Str("source", req.Source).Uint64("doc_id", *req.DocID).Msg("Indexing error")
		writeError(w, http.StatusInternalServerError, msgIndexFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Indexed document: " + req.Source,
	})
}

func parseIndexRequest(r *http.Request) (indexRequest, bool) {
	var req indexRequest
	q := r.URL.Query()
	if q.Has("text") || q.Has("source") || q.Has("doc_id") {
		req.Text = q.Get("text")
		req.Source = q.Get("source")
		if id, err := strconv.ParseUint(q.Get("doc_id"), 10, 64); err == nil {
			req.DocID = &id
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false
	}
	if req.DocID == nil || strings.TrimSpace(req.Text) == "" || req.Source == "" {
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
