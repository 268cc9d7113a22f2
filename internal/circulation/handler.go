// internal/circulation/handler.go
package circulation

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"infobooks/internal/httputil"
)

// Borrowers resolves the national ID given by a client to the borrower key.
type Borrowers interface {
	ResolveBorrower(ctx context.Context, nationalID string) (uuid.UUID, error)
}

type Handler struct {
	service   Service
	borrowers Borrowers
	logger    *slog.Logger
}

func NewHandler(service Service, borrowers Borrowers, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, borrowers: borrowers, logger: logger}
}

func (h *Handler) HandleRent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID string `json:"national_id"`
		BookID     string `json:"book_id"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	borrowerID, err := h.borrowers.ResolveBorrower(r.Context(), req.NationalID)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	receipt, err := h.service.RentBook(r.Context(), borrowerID, req.BookID)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID string `json:"national_id"`
		LoanID     string `json:"loan_id"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	borrowerID, err := h.borrowers.ResolveBorrower(r.Context(), req.NationalID)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	confirmation, err := h.service.ReturnBook(r.Context(), borrowerID, req.LoanID)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, confirmation)
}

// HandleLoans lists the loans of the member named in the path.
func (h *Handler) HandleLoans(w http.ResponseWriter, r *http.Request) {
	borrowerID, err := h.borrowers.ResolveBorrower(r.Context(), chi.URLParam(r, "national_id"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	loans, err := h.service.LoansFor(r.Context(), borrowerID)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loans)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.DashboardStats(r.Context()))
}
