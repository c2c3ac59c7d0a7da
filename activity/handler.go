package activity

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"cropconnect/models"
	"cropconnect/utils"
)

type Hiring interface {
	BookingsFor(ctx context.Context, userID string, kind models.ServiceKind) ([]models.Booking, error)
	RequirementsOf(ctx context.Context, farmerID string, kind models.ServiceKind) ([]models.Requirement, error)
}

type Market interface {
	OrdersFor(ctx context.Context, userID string) (bought, sold []models.Order, err error)
}

type Ledger interface {
	Transactions(ctx context.Context, userID string) ([]models.Transaction, error)
}

// Source ids, shared with the client feed.
const (
	SourceTractorBookings     = "tractor-bookings"
	SourceWorkerBookings      = "worker-bookings"
	SourceTractorRequirements = "tractor-requirements"
	SourceWorkerRequirements  = "worker-requirements"
	SourceTransactions        = "transactions"
	SourceSellerOrders        = "seller-orders"
	SourceBuyerOrders         = "buyer-orders"
)

type Handler struct {
	hiring Hiring
	market Market
	ledger Ledger
}

func NewHandler(hiring Hiring, market Market, ledger Ledger) *Handler {
	return &Handler{hiring: hiring, market: market, ledger: ledger}
}

// Sources builds the seven feed sources for viewer.
func (h *Handler) Sources(viewer string) []Source {
	bookings := func(kind models.ServiceKind) func(context.Context) ([]Record, error) {
		return func(ctx context.Context) ([]Record, error) {
			list, err := h.hiring.BookingsFor(ctx, viewer, kind)
			return FromBookings(viewer, list), err
		}
	}
	requirements := func(kind models.ServiceKind) func(context.Context) ([]Record, error) {
		return func(ctx context.Context) ([]Record, error) {
			list, err := h.hiring.RequirementsOf(ctx, viewer, kind)
			return FromRequirements(list), err
		}
	}
	orders := func(sold bool) func(context.Context) ([]Record, error) {
		return func(ctx context.Context) ([]Record, error) {
			b, s, err := h.market.OrdersFor(ctx, viewer)
			if sold {
				return FromOrders(viewer, s), err
			}
			return FromOrders(viewer, b), err
		}
	}
	return []Source{
		{ID: SourceTractorBookings, Fetch: bookings(models.ServiceTractor)},
		{ID: SourceWorkerBookings, Fetch: bookings(models.ServiceWorker)},
		{ID: SourceTractorRequirements, Fetch: requirements(models.ServiceTractor)},
		{ID: SourceWorkerRequirements, Fetch: requirements(models.ServiceWorker)},
		{ID: SourceTransactions, Fetch: func(ctx context.Context) ([]Record, error) {
			list, err := h.ledger.Transactions(ctx, viewer)
			return FromTransactions(viewer, list), err
		}},
		{ID: SourceSellerOrders, Fetch: orders(true)},
		{ID: SourceBuyerOrders, Fetch: orders(false)},
	}
}

// ParseQuery reads ?type=&category=&from=&to=&q= from r.
func ParseQuery(r *http.Request) Query {
	v := r.URL.Query()
	return Query{
		Type:     Kind(v.Get("type")),
		Category: models.Category(v.Get("category")),
		From:     utils.ParseDate(v.Get("from")),
		To:       utils.ParseDate(v.Get("to")),
		Search:   v.Get("q"),
	}
}

// Feed serves GET /api/activity.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	res := FanOut(ctx, h.Sources(userID)...)
	filtered := Filter(res.Records, ParseQuery(r))

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	p := Paginate(filtered, page, min(limit, 100))

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":       true,
		"activities":    p.Records,
		"total":         p.Total,
		"page":          p.Page,
		"limit":         p.Limit,
		"totalPages":    p.TotalPages,
		"summary":       Summarize(filtered),
		"failedSources": res.FailedSources,
	})
}
