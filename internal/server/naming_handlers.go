package server

import (
	"encoding/json"
	"errors"
	"net/http"

	jsonwriter "github.com/FreedomSnow/sinoname/internal/json"
	"github.com/FreedomSnow/sinoname/internal/log"
	"github.com/FreedomSnow/sinoname/internal/naming"
)

// maxNamingBodyLen bounds request bodies on the naming endpoints
const maxNamingBodyLen = 1 << 16

// NamingHandlers exposes the AI naming backend to logged-in users.
// Both endpoints sit behind the session middleware.
type NamingHandlers struct {
	client *naming.Client
}

// NewNamingHandlers creates the naming handler set
func NewNamingHandlers(client *naming.Client) *NamingHandlers {
	return &NamingHandlers{client: client}
}

// GenerateHandler generates Chinese name suggestions
func (h *NamingHandlers) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use POST")
		return
	}

	var req naming.GenerateRequest
	if err := decodeBody(r, &req); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.client.Generate(r.Context(), req)
	if err != nil {
		h.writeNamingError(w, r, err)
		return
	}
	_ = jsonwriter.Write(w, result)
}

// CustomizeHandler refines a suggestion against free-form requirements
func (h *NamingHandlers) CustomizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use POST")
		return
	}

	var req naming.CustomizeRequest
	if err := decodeBody(r, &req); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}

	suggestion, err := h.client.Customize(r.Context(), req)
	if err != nil {
		h.writeNamingError(w, r, err)
		return
	}
	_ = jsonwriter.Write(w, suggestion)
}

func (h *NamingHandlers) writeNamingError(w http.ResponseWriter, r *http.Request, err error) {
	var upstreamErr *naming.UpstreamError
	switch {
	case errors.As(err, &upstreamErr):
		log.LogErrorWithFields("naming", "Upstream naming request failed", map[string]any{
			"status": upstreamErr.StatusCode,
			"path":   r.URL.Path,
		})
		jsonwriter.WriteServiceUnavailable(w, "Naming service unavailable")
	case errors.Is(err, naming.ErrInvalidRequest):
		jsonwriter.WriteBadRequest(w, err.Error())
	default:
		log.LogError("Naming request failed: %v", err)
		jsonwriter.WriteInternalServerError(w, "Naming request failed")
	}
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxNamingBodyLen))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}
