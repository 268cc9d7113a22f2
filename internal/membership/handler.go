// internal/membership/handler.go
package membership

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"infobooks/internal/httputil"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req Registration
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	profile, err := h.service.RegisterUser(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, profile)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID string `json:"national_id"`
		Password   string `json:"password"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	profile, err := h.service.Authenticate(r.Context(), req.NationalID, req.Password)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	// No session is issued; the client keeps the national ID.
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Deactivate(r.Context(), chi.URLParam(r, "national_id"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}
