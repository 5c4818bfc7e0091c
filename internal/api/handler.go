package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/eugenenazirov/st2actioncontroller/internal/registry"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// OptionReader exposes resolved configuration values.
type OptionReader interface {
	Values() ([]registry.Value, error)
	Group(group string) ([]registry.Value, error)
	Lookup(group, name string) (registry.Value, error)
	ConfigFile() (string, error)
}

// Handler serves read-only views of the resolved configuration.
type Handler struct {
	options OptionReader

	clock     func() time.Time
	startedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(options OptionReader, opts ...HandlerOption) *Handler {
	h := &Handler{
		options: options,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	now := h.clock()
	resp := healthResponse{
		Status:    "ok",
		Timestamp: now,
		Uptime:    now.Sub(h.startedAt).String(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListOptions(w http.ResponseWriter, r *http.Request) {
	_ = r
	values, err := h.options.Values()
	if err != nil {
		writeOptionError(w, err)
		return
	}
	configFile, err := h.options.ConfigFile()
	if err != nil {
		writeOptionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, optionsResponse{
		ConfigFile: configFile,
		Options:    toOptionResponses(values),
	})
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")
	values, err := h.options.Group(group)
	if err != nil {
		writeOptionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, groupResponse{
		Group:   group,
		Options: toOptionResponses(values),
	})
}

func (h *Handler) handleGetOption(w http.ResponseWriter, r *http.Request) {
	value, err := h.options.Lookup(r.PathValue("group"), r.PathValue("name"))
	if err != nil {
		writeOptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOptionResponse(value))
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func toOptionResponses(values []registry.Value) []optionResponse {
	out := make([]optionResponse, 0, len(values))
	for _, v := range values {
		out = append(out, toOptionResponse(v))
	}
	return out
}

func toOptionResponse(v registry.Value) optionResponse {
	resp := optionResponse{
		Group:  v.Group,
		Name:   v.Name,
		Kind:   v.Kind.String(),
		Value:  v.Value,
		Source: v.Source.String(),
		Secret: v.Secret,
	}
	if v.Secret {
		resp.Value = v.Display()
	}
	return resp
}

type optionResponse struct {
	Group  string `json:"group"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Value  any    `json:"value"`
	Source string `json:"source"`
	Secret bool   `json:"secret,omitempty"`
}

type optionsResponse struct {
	ConfigFile string           `json:"configFile,omitempty"`
	Options    []optionResponse `json:"options"`
}

type groupResponse struct {
	Group   string           `json:"group"`
	Options []optionResponse `json:"options"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeOptionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrUnknownOption):
		writeError(w, http.StatusNotFound, "Unknown option", err.Error(), "GET /api/config lists every registered option")
	case errors.Is(err, registry.ErrNotParsed):
		writeError(w, http.StatusServiceUnavailable, "Configuration not ready", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
