package orders

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bazarly/bazarly/internal/platform/db"
	"github.com/bazarly/bazarly/internal/shared"
)

func TestDomainErrorStatusCodes(t *testing.T) {
	h := &Handler{}
	cases := []struct {
		err  error
		code int
	}{
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: product 7", ErrProductNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: counterparty 9", ErrCounterpartyNotFound), http.StatusNotFound},
		{ErrInactiveProduct, http.StatusBadRequest},
		{ErrEmptyOrder, http.StatusBadRequest},
		{ErrCounterpartyKind, http.StatusBadRequest},
		{ErrInsufficientStock, http.StatusConflict},
		{ErrInvalidTransition, http.StatusConflict},
		{shared.ErrIdempotencyConflict, http.StatusConflict},
		{db.ErrTxConflict, http.StatusConflict},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.respondDomainError(rec, tc.err)
		require.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}
