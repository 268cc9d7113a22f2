// internal/catalog/handler.go
package catalog

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

// HandleBooks lists the catalog, filtered by the optional q parameter.
func (h *Handler) HandleBooks(w http.ResponseWriter, r *http.Request) {
	books := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if books == nil {
		books = []BookView{}
	}
	httputil.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) HandleBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	var req NewBook
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	book, err := h.service.AddBook(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, book)
}
