package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/arell305/hostlyapp/internal/domain/access"
	"github.com/arell305/hostlyapp/internal/domain/checkout"
	"github.com/arell305/hostlyapp/internal/domain/guest"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
	"github.com/arell305/hostlyapp/pkg/httpmiddleware"
)

// statusOf maps domain errors to an HTTP status and a client message.
func statusOf(err error) (int, string) {
	if msg, ok := checkout.PromoMessage(err); ok {
		return http.StatusUnprocessableEntity, msg
	}

	var inv *ticket.InsufficientInventoryError
	switch {
	case errors.Is(err, errMalformed):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, checkout.ErrEmptySelection),
		errors.Is(err, checkout.ErrEmailRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, ErrUnauthorized.Error()
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, ticket.ErrEventNotFound):
		return http.StatusNotFound, ticket.ErrEventNotFound.Error()
	case errors.Is(err, guest.ErrNotFound):
		return http.StatusNotFound, guest.ErrNotFound.Error()
	case errors.As(err, &inv):
		return http.StatusConflict, inv.Error()
	case errors.Is(err, guest.ErrAlreadyCheckedIn):
		return http.StatusConflict, guest.ErrAlreadyCheckedIn.Error()
	case errors.Is(err, ticket.ErrUnknownTicketType),
		errors.Is(err, ticket.ErrSalesEnded):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail writes err as an API error. Unmapped errors are logged and hidden
// from the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	httpmiddleware.WriteError(w, status, msg)
}
