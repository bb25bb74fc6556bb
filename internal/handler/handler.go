// Package handler implements the HTTP API on top of the domain services.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arell305/hostlyapp/internal/domain/checkout"
	"github.com/arell305/hostlyapp/internal/domain/guest"
	"github.com/arell305/hostlyapp/internal/domain/promo"
	"github.com/arell305/hostlyapp/internal/domain/summary"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
	"github.com/arell305/hostlyapp/pkg/httpmiddleware"
)

// CheckoutService prices selections and places orders.
type CheckoutService interface {
	Quote(ctx context.Context, req checkout.QuoteRequest) (*checkout.Quote, error)
	PlaceOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.Order, error)
}

// SummaryService computes event KPIs.
type SummaryService interface {
	EventSummary(ctx context.Context, eventID string) (*summary.EventSummary, error)
}

var (
	_ CheckoutService = (*checkout.Service)(nil)
	_ SummaryService  = (*summary.Service)(nil)
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// PromoLimit guards promo code validation against code guessing. Nil
	// leaves the route unlimited.
	PromoLimit httpmiddleware.Middleware
	// MaxBodyBytes caps request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64
}

// Handler serves the event checkout API.
type Handler struct {
	checkout  CheckoutService
	summaries SummaryService
	catalog   ticket.Catalog
	promos    promo.Validator
	guests    guest.Repository
	auth      *Authenticator

	promoLimit httpmiddleware.Middleware
	maxBody    int64
	now        func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	auth *Authenticator,
	checkoutService CheckoutService,
	summaries SummaryService,
	catalog ticket.Catalog,
	promos promo.Validator,
	guests guest.Repository,
) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.PromoLimit == nil {
		cfg.PromoLimit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		checkout:   checkoutService,
		summaries:  summaries,
		catalog:    catalog,
		promos:     promos,
		guests:     guests,
		auth:       auth,
		promoLimit: cfg.PromoLimit,
		maxBody:    cfg.MaxBodyBytes,
		now:        time.Now,
	}
}

// Operations maps "METHOD pattern" to the operation id used in logs, span
// names and metric labels.
var Operations = map[string]string{
	"GET /api/events/{eventID}/ticket-types":               "listTicketTypes",
	"POST /api/events/{eventID}/quote":                     "quote",
	"POST /api/events/{eventID}/orders":                    "placeOrder",
	"POST /api/events/{eventID}/promo-codes/validate":      "validatePromoCode",
	"GET /api/events/{eventID}/summary":                    "eventSummary",
	"POST /api/events/{eventID}/guests/{guestID}/check-in": "checkInGuest",
}

// Router returns the API routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/api/events/{eventID}/ticket-types", h.ListTicketTypes)
	r.Post("/api/events/{eventID}/quote", h.Quote)
	r.Post("/api/events/{eventID}/orders", h.PlaceOrder)
	r.With(h.promoLimit).Post("/api/events/{eventID}/promo-codes/validate", h.ValidatePromoCode)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)
		r.Get("/api/events/{eventID}/summary", h.EventSummary)
		r.Post("/api/events/{eventID}/guests/{guestID}/check-in", h.CheckInGuest)
	})
	return r
}
