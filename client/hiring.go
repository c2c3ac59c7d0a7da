package client

import (
	"context"
	"errors"
	"net/url"

	"cropconnect/models"
)

// Hiring drives requirements, bids and bookings for both sides.
type Hiring struct {
	api   *Transport
	guard guard
}

func NewHiring(api *Transport) *Hiring {
	return &Hiring{api: api}
}

// HiringSnapshot is the server state re-read after a bid decision.
type HiringSnapshot struct {
	Bids     []models.Bid
	Bookings []models.Booking
}

func requirementPath(kind models.ServiceKind, id string) string {
	p := "/api/requirements/" + url.PathEscape(string(kind))
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

func (h *Hiring) PostRequirement(ctx context.Context, req models.Requirement) (models.Requirement, error) {
	if err := req.Validate(); err != nil {
		return models.Requirement{}, err
	}
	var res struct {
		Requirement models.Requirement `json:"requirement"`
	}
	err := h.guard.run("post:"+string(req.Kind), func() error {
		return h.api.Do(ctx, "POST", requirementPath(req.Kind, ""), req, &res, NoRetry())
	})
	return res.Requirement, err
}

// ListRequirements returns open listings, or every requirement the caller posted when mine is set.
func (h *Hiring) ListRequirements(ctx context.Context, kind models.ServiceKind, mine bool) ([]models.Requirement, error) {
	path := requirementPath(kind, "")
	if mine {
		path += "?mine=true"
	}
	var res struct {
		Requirements []models.Requirement `json:"requirements"`
	}
	err := h.api.Do(ctx, "GET", path, nil, &res)
	return res.Requirements, err
}

func (h *Hiring) PlaceBid(ctx context.Context, req models.Requirement, p models.Proposal) (models.Bid, error) {
	if req.Status != models.RequirementOpen {
		return models.Bid{}, models.Invalid("requirement", "This requirement is no longer accepting bids")
	}
	if err := p.Validate(); err != nil {
		return models.Bid{}, err
	}
	var res struct {
		Bid models.Bid `json:"bid"`
	}
	err := h.guard.run("bid:"+req.RequirementID, func() error {
		return h.api.Do(ctx, "POST", requirementPath(req.Kind, req.RequirementID)+"/bids", p, &res, NoRetry())
	})
	return res.Bid, err
}

func (h *Hiring) ListBids(ctx context.Context, req models.Requirement) ([]models.Bid, error) {
	var res struct {
		Bids []models.Bid `json:"bids"`
	}
	err := h.api.Do(ctx, "GET", requirementPath(req.Kind, req.RequirementID)+"/bids", nil, &res)
	return res.Bids, err
}

func (h *Hiring) MyBids(ctx context.Context) ([]models.Bid, error) {
	var res struct {
		Bids []models.Bid `json:"bids"`
	}
	err := h.api.Do(ctx, "GET", "/api/bids/mine", nil, &res)
	return res.Bids, err
}

func (h *Hiring) ListBookings(ctx context.Context, kind models.ServiceKind) ([]models.Booking, error) {
	path := "/api/bookings"
	if kind != "" {
		path += "?serviceType=" + url.QueryEscape(string(kind))
	}
	var res struct {
		Bookings []models.Booking `json:"bookings"`
	}
	err := h.api.Do(ctx, "GET", path, nil, &res)
	return res.Bookings, err
}

// AcceptBid is sent once. Whatever the outcome, bids and bookings are
// re-read so the caller never has to guess whether it took effect.
func (h *Hiring) AcceptBid(ctx context.Context, req models.Requirement, bidID string) (HiringSnapshot, error) {
	return h.decide(ctx, req, bidID, "accept")
}

func (h *Hiring) RejectBid(ctx context.Context, req models.Requirement, bidID string) (HiringSnapshot, error) {
	return h.decide(ctx, req, bidID, "reject")
}

func (h *Hiring) decide(ctx context.Context, req models.Requirement, bidID, action string) (HiringSnapshot, error) {
	if bidID == "" {
		return HiringSnapshot{}, models.FieldError("bidId", "is required")
	}
	err := h.guard.run("decide:"+req.RequirementID, func() error {
		return h.api.Do(ctx, "POST", "/api/bids/"+url.PathEscape(bidID)+"/"+action, nil, nil, NoRetry())
	})
	if errors.Is(err, ErrInFlight) {
		return HiringSnapshot{}, err
	}

	snap, rerr := h.snapshot(ctx, req)
	if err == nil {
		err = rerr
	}
	return snap, err
}

func (h *Hiring) snapshot(ctx context.Context, req models.Requirement) (HiringSnapshot, error) {
	var snap HiringSnapshot
	bids, err := h.ListBids(ctx, req)
	if err != nil {
		return snap, err
	}
	snap.Bids = bids
	snap.Bookings, err = h.ListBookings(ctx, req.Kind)
	return snap, err
}

// CreateBooking books a provider directly without a requirement.
func (h *Hiring) CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	if !b.ServiceType.Valid() {
		return models.Booking{}, models.FieldError("serviceType", "must be worker or tractor")
	}
	if b.ProviderID == "" {
		return models.Booking{}, models.FieldError("providerId", "is required")
	}
	if b.BookingDate == nil || b.BookingDate.IsZero() {
		return models.Booking{}, models.FieldError("bookingDate", "is required")
	}
	if b.TotalCost <= 0 {
		return models.Booking{}, models.FieldError("totalCost", "must be greater than 0")
	}
	var res struct {
		Booking models.Booking `json:"booking"`
	}
	err := h.guard.run("book:"+b.ProviderID, func() error {
		return h.api.Do(ctx, "POST", "/api/bookings", b, &res, NoRetry())
	})
	return res.Booking, err
}

// UpdateBookingStatus moves a booking forward. Cancelling goes through CancelBooking.
func (h *Hiring) UpdateBookingStatus(ctx context.Context, b models.Booking, to models.BookingStatus) (models.Booking, error) {
	if to == models.BookingCancelled {
		return models.Booking{}, models.Invalid("status", "Use cancel with a reason")
	}
	if !b.Status.CanTransition(to) {
		return models.Booking{}, models.Invalid("status", "Cannot move a "+string(b.Status)+" booking to "+string(to))
	}
	return h.bookingAction(ctx, "PUT", b.BookingID, "status", map[string]string{"status": string(to)})
}

func (h *Hiring) CancelBooking(ctx context.Context, b models.Booking, reason string) (models.Booking, error) {
	if err := b.CanCancel(reason); err != nil {
		return models.Booking{}, cancelError(err)
	}
	return h.bookingAction(ctx, "PUT", b.BookingID, "cancel", map[string]string{"reason": reason})
}

func (h *Hiring) SetPaymentMethod(ctx context.Context, b models.Booking, m models.BookingPaymentMethod) (models.Booking, error) {
	if !m.Valid() {
		return models.Booking{}, models.FieldError("paymentMethod", "must be pay_now or pay_after_work")
	}
	return h.bookingAction(ctx, "PUT", b.BookingID, "payment-method", map[string]string{"paymentMethod": string(m)})
}

func (h *Hiring) bookingAction(ctx context.Context, method, id, action string, body any) (models.Booking, error) {
	var res struct {
		Booking models.Booking `json:"booking"`
	}
	err := h.guard.run(action+":"+id, func() error {
		return h.api.Do(ctx, method, "/api/bookings/"+url.PathEscape(id)+"/"+action, body, &res, NoRetry())
	})
	return res.Booking, err
}

// cancelError rewords a model rule as a user-facing validation error.
func cancelError(err error) error {
	switch {
	case errors.Is(err, models.ErrAlreadyPaid):
		return models.Invalid("status", "Paid items cannot be cancelled")
	case errors.Is(err, models.ErrReasonRequired):
		return models.Invalid("reason", "Cancellation reason is required")
	case errors.Is(err, models.ErrInvalidTransition):
		return models.Invalid("status", "This can no longer be cancelled")
	}
	return err
}
