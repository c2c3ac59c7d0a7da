package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"cropconnect/db"
	"cropconnect/models"
	"cropconnect/mq"
	"cropconnect/rdx"
	"cropconnect/utils"
)

func (s *Service) save(ctx context.Context, w http.ResponseWriter, o models.Order, expect models.OrderStatus, expectPay models.PaymentStatus) bool {
	o.UpdatedAt = s.now()
	if err := s.orders.UpdateIf(ctx, o, expect, expectPay); err != nil {
		if errors.Is(err, db.ErrStale) {
			utils.RespondWithError(w, http.StatusConflict, "Order was changed by another request")
			return false
		}
		log.Printf("[orders] update %s: %v", o.OrderID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update order")
		return false
	}
	return true
}

// lockOrder serialises seller updates on one order so shares are not lost.
func (s *Service) lockOrder(ctx context.Context, w http.ResponseWriter, id string) (func(), bool) {
	unlock, err := s.locker.Lock(ctx, "order:"+id, 10*time.Second)
	if err != nil {
		if errors.Is(err, rdx.ErrLocked) {
			utils.RespondWithError(w, http.StatusConflict, "Order is being updated, try again")
			return nil, false
		}
		log.Printf("[orders] lock order %s: %v", id, err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Service is busy, please try again")
		return nil, false
	}
	return unlock, true
}

// Advance returns a seller handler that moves the caller's part of an order forward to status.
func (s *Service) Advance(status models.OrderStatus) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		unlock, ok := s.lockOrder(ctx, w, ps.ByName("id"))
		if !ok {
			return
		}
		defer unlock()

		o, ok := s.partyOrder(ctx, w, r, ps)
		if !ok {
			return
		}
		seller := utils.GetUserIDFromRequest(r)
		if !o.HasSeller(seller) {
			utils.RespondWithError(w, http.StatusForbidden, "Only the seller can update this order")
			return
		}
		from := o.StatusFor(seller)
		expect := o.Status
		if err := o.AdvanceSeller(seller, status); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("Cannot move order from %s to %s", from, status))
			return
		}
		if !s.save(ctx, w, o, expect, o.PaymentStatus) {
			return
		}
		s.events.Emit(ctx, mq.Event{
			Type:    mq.OrderStatus,
			UserID:  o.BuyerID,
			Title:   "Order " + string(status),
			Message: fmt.Sprintf("Order %s is now %s", shortID(o.OrderID), status),
			Data:    map[string]interface{}{"orderId": o.OrderID, "status": status},
		})
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "order": o})
	}
}

// CancelOrder cancels a pending or confirmed order that was not paid online
// and returns its quantities to the listings.
func (s *Service) CancelOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		Reason string `json:"reason"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	o, ok := s.partyOrder(ctx, w, r, ps)
	if !ok {
		return
	}
	if err := o.CanCancel(in.Reason); err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyPaid):
			utils.RespondWithError(w, http.StatusConflict, "Order was paid online and cannot be cancelled")
		case errors.Is(err, models.ErrInvalidTransition):
			if o.Status.CanTransition(models.OrderCancelled) {
				utils.RespondWithError(w, http.StatusBadRequest, "Part of this order is already picked")
				return
			}
			utils.RespondWithError(w, http.StatusBadRequest, "Order cannot be cancelled once it is "+string(o.Status))
		default:
			utils.RespondWithError(w, http.StatusBadRequest, "Cancellation reason is required")
		}
		return
	}
	expect := o.Status
	o.Status = models.OrderCancelled
	o.CancellationReason = strings.TrimSpace(in.Reason)
	if !s.save(ctx, w, o, expect, o.PaymentStatus) {
		return
	}
	s.release(ctx, o.Items)

	userID := utils.GetUserIDFromRequest(r)
	notify := o.SellerIDs
	if userID != o.BuyerID {
		notify = []string{o.BuyerID}
	}
	for _, id := range notify {
		s.events.Emit(ctx, mq.Event{
			Type:    mq.OrderStatus,
			UserID:  id,
			Title:   "Order cancelled",
			Message: fmt.Sprintf("Order %s was cancelled: %s", shortID(o.OrderID), o.CancellationReason),
			Data:    map[string]interface{}{"orderId": o.OrderID, "status": o.Status},
		})
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "order": o})
}

// SettleCash records the buyer's cash payment of the caller's share of a
// payAfterDelivery order. Each seller records only their own share.
func (s *Service) SettleCash(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	unlock, ok := s.lockOrder(ctx, w, ps.ByName("id"))
	if !ok {
		return
	}
	defer unlock()

	o, ok := s.partyOrder(ctx, w, r, ps)
	if !ok {
		return
	}
	seller := utils.GetUserIDFromRequest(r)
	if !o.HasSeller(seller) {
		utils.RespondWithError(w, http.StatusForbidden, "Only the seller can record a cash payment")
		return
	}
	if o.PaymentMethod != models.PayAfterDelivery {
		utils.RespondWithError(w, http.StatusBadRequest, "Order is not pay after delivery")
		return
	}
	if o.SellerPaid(seller) {
		utils.RespondWithError(w, http.StatusConflict, "Order is already paid")
		return
	}
	if st := o.StatusFor(seller); st != models.OrderPicked && st != models.OrderCompleted {
		utils.RespondWithError(w, http.StatusBadRequest, "Cash can be recorded once the order is picked")
		return
	}
	expect := o.Status
	if err := o.SettleSeller(seller); err != nil {
		utils.RespondWithError(w, http.StatusConflict, "Order is already paid")
		return
	}
	if !s.save(ctx, w, o, expect, models.PaymentPending) {
		return
	}
	s.recordShare(ctx, o, seller, models.MethodCash)
	s.events.Emit(ctx, mq.Event{
		Type:    mq.OrderPaid,
		UserID:  o.BuyerID,
		Title:   "Payment recorded",
		Message: fmt.Sprintf("Cash payment of ₹%.2f recorded for order %s", o.SellerTotal(seller), shortID(o.OrderID)),
		Data:    map[string]interface{}{"orderId": o.OrderID},
	})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "order": o})
}
