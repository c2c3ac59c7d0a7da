package booking

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"cropconnect/db"
	"cropconnect/models"
	"cropconnect/mq"
	"cropconnect/pay"
	"cropconnect/rdx"
	"cropconnect/utils"
)

const lockTTL = 15 * time.Second

const msgLockUnavailable = "Service is busy, please try again"

// Locker serialises work on one requirement across instances.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Payments is the part of pay.Service bookings need.
type Payments interface {
	Confirm(ctx context.Context, c pay.Claim, v models.PaymentVerification) error
	Release(ctx context.Context, orderID, usedBy string)
	Record(ctx context.Context, txn models.Transaction)
}

// Service serves requirements, bids and bookings.
type Service struct {
	requirements RequirementStore
	bids         BidStore
	bookings     BookingStore
	locker       Locker
	payments     Payments
	events       mq.Emitter
	now          func() time.Time
}

func NewService(requirements RequirementStore, bids BidStore, bookings BookingStore, locker Locker, payments Payments, events mq.Emitter) *Service {
	if events == nil {
		events = mq.Discard{}
	}
	return &Service{
		requirements: requirements,
		bids:         bids,
		bookings:     bookings,
		locker:       locker,
		payments:     payments,
		events:       events,
		now:          time.Now,
	}
}

// Requirement returns one requirement by id.
func (s *Service) Requirement(ctx context.Context, id string) (models.Requirement, error) {
	return s.requirements.Get(ctx, id)
}

// Booking returns one booking by id.
func (s *Service) Booking(ctx context.Context, id string) (models.Booking, error) {
	return s.bookings.Get(ctx, id)
}

// BookingsFor lists the bookings where userID is farmer or provider.
func (s *Service) BookingsFor(ctx context.Context, userID string, kind models.ServiceKind) ([]models.Booking, error) {
	return s.bookings.ForUser(ctx, BookingQuery{UserID: userID, ServiceType: kind})
}

// RequirementsOf lists every requirement the farmer posted.
func (s *Service) RequirementsOf(ctx context.Context, farmerID string, kind models.ServiceKind) ([]models.Requirement, error) {
	return s.requirements.List(ctx, RequirementQuery{Kind: kind, FarmerID: farmerID})
}

// lock takes a named lock. A held lock answers 409 with busy; a lock backend
// failure answers 503.
func (s *Service) lock(ctx context.Context, w http.ResponseWriter, key, busy string) (func(), bool) {
	release, err := s.locker.Lock(ctx, key, lockTTL)
	if err != nil {
		if errors.Is(err, rdx.ErrLocked) {
			utils.RespondWithError(w, http.StatusConflict, busy)
			return nil, false
		}
		log.Printf("[booking] lock %s: %v", key, err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, msgLockUnavailable)
		return nil, false
	}
	return release, true
}

func (s *Service) notify(ctx context.Context, typ, userID, title, msg string, data map[string]interface{}) {
	s.events.Emit(ctx, mq.Event{Type: typ, UserID: userID, Title: title, Message: msg, Data: data})
}

func kindParam(w http.ResponseWriter, ps httprouter.Params) (models.ServiceKind, bool) {
	kind := models.ServiceKind(ps.ByName("kind"))
	if !kind.Valid() {
		utils.RespondWithError(w, http.StatusNotFound, "Unknown service type")
		return "", false
	}
	return kind, true
}

// respondStoreError maps store failures onto a response.
func respondStoreError(w http.ResponseWriter, err error, what, action string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, db.ErrDuplicate):
		utils.RespondWithError(w, http.StatusConflict, what+" already exists")
	case errors.Is(err, db.ErrStale):
		utils.RespondWithError(w, http.StatusConflict, what+" was changed by another request")
	default:
		log.Printf("[booking] %s: %v", action, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

func respondValidation(w http.ResponseWriter, err error) bool {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		utils.RespondWithError(w, http.StatusBadRequest, verr.Message)
		return true
	}
	return false
}
