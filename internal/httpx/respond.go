package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eightstore/commerce/internal/cart"
	"github.com/eightstore/commerce/internal/catalog"
	"github.com/eightstore/commerce/internal/order"
)

// Development widens error responses with internal detail. Off in
// production: unexpected errors surface as a generic message only.
var Development bool

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if code, ok := statusOf(err); ok {
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}
	msg := "Something went wrong"
	if Development {
		msg = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
}

// statusOf classifies the domain error taxonomy. Anything unrecognized is
// an internal error.
func statusOf(err error) (int, bool) {
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, catalog.ErrDuplicateReview):
		return http.StatusConflict, true
	case errors.Is(err, catalog.ErrUnavailable),
		errors.Is(err, catalog.ErrSizeUnavailable),
		errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, catalog.ErrInvalidRating),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidIdentity),
		errors.Is(err, order.ErrInvalidInput),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrEmptyOrder):
		return http.StatusBadRequest, true
	}
	return 0, false
}
