package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"

	"github.com/toolink/folio/mailer"
	"github.com/toolink/folio/stats"
)

// contactRequest is the contact form body. Website is a honeypot that humans
// never see and therefore never fill.
type contactRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,min=2,max=150"`
	Message string `json:"message" validate:"required,min=5,max=2000"`
	Website string `json:"website"`
}

type contactResponse struct {
	Success bool        `json:"success"`
	Data    contactData `json:"data"`
}

type contactData struct {
	MessageID string `json:"messageId"`
}

type chatbotResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

type healthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	var req contactRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		logger.Debug().Err(err).Msg("undecodable contact body")
		writeJSON(w, r, http.StatusBadRequest, errorBody{
			Error:   "Invalid input",
			Details: map[string]string{"body": "invalid json"},
		})
		return
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			logger.Error().Err(err).Msg("contact validation failed")
			writeError(w, r, http.StatusInternalServerError, "Failed to send email")
			return
		}
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "Invalid input", Details: details})
		return
	}

	if strings.TrimSpace(req.Website) != "" {
		logger.Warn().Msg("contact honeypot filled")
		writeError(w, r, http.StatusBadRequest, "Spam detected")
		return
	}

	id, err := s.mailer.Send(r.Context(), mailer.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to send contact mail")
		writeError(w, r, http.StatusInternalServerError, "Failed to send email")
		return
	}
	writeJSON(w, r, http.StatusOK, contactResponse{Success: true, Data: contactData{MessageID: id}})
}

func (s *Server) handleGitHubStats(w http.ResponseWriter, r *http.Request) {
	v, err := s.github.Get(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to fetch github stats")
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch GitHub statistics")
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

func (s *Server) handleLeetCodeStats(w http.ResponseWriter, r *http.Request) {
	v, err := s.leetcode.Get(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to fetch leetcode stats")
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch LeetCode statistics")
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

func (s *Server) handleChatbot(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&body); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to decode chatbot message")
		writeError(w, r, http.StatusInternalServerError, "Failed to process message")
		return
	}

	message, ok := body["message"].(string)
	if !ok || message == "" {
		writeError(w, r, http.StatusBadRequest, "Message is required")
		return
	}

	writeJSON(w, r, http.StatusOK, chatbotResponse{
		Response:  s.chatbot.Reply(message),
		Timestamp: formatTimestamp(s.clock()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("redis ping failed")
			resp.Status = "degraded"
			resp.Redis = "unreachable"
			writeJSON(w, r, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Redis = "ok"
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// StatsSource yields upstream statistics. *stats.Cached satisfies it.
type StatsSource[T any] interface {
	Get(ctx context.Context) (*T, error)
}

var (
	_ StatsSource[stats.GitHubStats]   = (*stats.Cached[stats.GitHubStats])(nil)
	_ StatsSource[stats.LeetCodeStats] = (*stats.Cached[stats.LeetCodeStats])(nil)
)
