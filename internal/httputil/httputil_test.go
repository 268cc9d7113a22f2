package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infobooks/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrBookNotFound, http.StatusNotFound},
		{domain.ErrNoCopiesAvailable, http.StatusConflict},
		{domain.ErrAlreadyReturned, http.StatusConflict},
		{domain.ErrOverdue, http.StatusUnprocessableEntity},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrInvalidBookReference, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrLoanNotFound), http.StatusNotFound},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusFor(c.err), c.err.Error())
	}
}

func TestWriteError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, nil, errors.New("db password leaked"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "leaked")
	assert.Contains(t, rec.Body.String(), `"code":"internal"`)
}

func TestWriteError_Overdue(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/return", nil)

	WriteError(rec, req, nil, domain.ErrOverdue)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "administrative desk")
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ana"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "Ana", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nome":"Ana"}`))
	assert.ErrorIs(t, DecodeJSON(req, &dst), domain.ErrInvalidInput)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.ErrorIs(t, DecodeJSON(req, &dst), domain.ErrInvalidInput)
}
