package booking

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
	"cropconnect/utils"
)

const msgAlreadyAccepted = "bid already accepted"

type bidInput struct {
	ProposedAmount   float64 `json:"proposedAmount"`
	ProposedDuration string  `json:"proposedDuration"`
	ProposedDate     string  `json:"proposedDate"`
	Message          string  `json:"message"`
}

// PlaceBid records a provider's proposal on an open requirement.
func (s *Service) PlaceBid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	req, ok := s.loadRequirement(ctx, w, ps)
	if !ok {
		return
	}
	if models.Role(utils.GetRoleFromRequest(r)) != req.Kind.ProviderRole() {
		utils.RespondWithError(w, http.StatusForbidden, fmt.Sprintf("Only %s accounts can bid on %s requirements", req.Kind.ProviderRole(), req.Kind))
		return
	}
	if req.Status != models.RequirementOpen {
		utils.RespondWithError(w, http.StatusConflict, "Requirement is no longer accepting bids")
		return
	}

	var in bidInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	proposal := models.Proposal{
		ProposedAmount:   in.ProposedAmount,
		ProposedDuration: strings.TrimSpace(in.ProposedDuration),
		ProposedDate:     utils.ParseDate(in.ProposedDate),
		Message:          strings.TrimSpace(in.Message),
	}
	if err := proposal.Validate(); err != nil {
		respondValidation(w, err)
		return
	}

	bidderID := utils.GetUserIDFromRequest(r)
	pending, err := s.bids.HasPending(ctx, req.RequirementID, bidderID)
	if err != nil {
		respondStoreError(w, err, "Bid", "place bid")
		return
	}
	if pending {
		utils.RespondWithError(w, http.StatusConflict, "You already have a pending bid on this requirement")
		return
	}

	now := s.now()
	bid := models.Bid{
		BidID:            utils.GetUUID(),
		RequirementID:    req.RequirementID,
		RequirementKind:  req.Kind,
		BidderID:         bidderID,
		ProposedAmount:   proposal.ProposedAmount,
		ProposedDuration: proposal.ProposedDuration,
		ProposedDate:     proposal.ProposedDate,
		Message:          proposal.Message,
		Status:           models.BidPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.bids.Create(ctx, bid); err != nil {
		respondStoreError(w, err, "Bid", "place bid")
		return
	}
	s.notify(ctx, mq.BidPlaced, req.FarmerID, "New bid",
		fmt.Sprintf("New bid of ₹%.2f on your %s requirement", bid.ProposedAmount, req.Kind),
		map[string]interface{}{"requirementId": req.RequirementID, "bidId": bid.BidID})
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "bid": bid})
}

// ListBids returns the bids on a requirement to the farmer who owns it.
func (s *Service) ListBids(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	req, ok := s.loadRequirement(ctx, w, ps)
	if !ok {
		return
	}
	if req.FarmerID != utils.GetUserIDFromRequest(r) {
		utils.RespondWithError(w, http.StatusForbidden, "Only the farmer who posted this requirement can view its bids")
		return
	}
	bids, err := s.bids.ForRequirement(ctx, req.RequirementID)
	if err != nil {
		respondStoreError(w, err, "Bid", "fetch bids")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "bids": bids})
}

// MyBids lists the caller's bids across requirements.
func (s *Service) MyBids(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	bids, err := s.bids.ForBidder(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		respondStoreError(w, err, "Bid", "fetch bids")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "bids": bids})
}

// bidForFarmer loads a bid and its requirement and checks the caller owns the requirement.
func (s *Service) bidForFarmer(ctx context.Context, w http.ResponseWriter, r *http.Request, ps httprouter.Params) (models.Bid, models.Requirement, bool) {
	bid, err := s.bids.Get(ctx, ps.ByName("id"))
	if err != nil {
		respondStoreError(w, err, "Bid", "fetch bid")
		return bid, models.Requirement{}, false
	}
	req, err := s.requirements.Get(ctx, bid.RequirementID)
	if err != nil {
		respondStoreError(w, err, "Requirement", "fetch requirement")
		return bid, req, false
	}
	if req.FarmerID != utils.GetUserIDFromRequest(r) {
		utils.RespondWithError(w, http.StatusForbidden, "Only the farmer who posted this requirement can decide on bids")
		return bid, req, false
	}
	return bid, req, true
}

func respondResolved(w http.ResponseWriter, bid models.Bid) {
	if bid.Status == models.BidAccepted {
		utils.RespondWithError(w, http.StatusConflict, msgAlreadyAccepted)
		return
	}
	utils.RespondWithError(w, http.StatusConflict, "Bid is already "+string(bid.Status))
}

// AcceptBid accepts one bid. The requirement moves open -> in_progress by
// compare-and-set while the requirement lock is held, so at most one bid per
// requirement is ever accepted and exactly one booking is created.
func (s *Service) AcceptBid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	bid, req, ok := s.bidForFarmer(ctx, w, r, ps)
	if !ok {
		return
	}
	if bid.Status != models.BidPending {
		respondResolved(w, bid)
		return
	}

	release, ok := s.lock(ctx, w, "requirement:"+req.RequirementID, msgAlreadyAccepted)
	if !ok {
		return
	}
	defer release()

	req, err := s.requirements.Get(ctx, req.RequirementID)
	if err != nil {
		respondStoreError(w, err, "Requirement", "accept bid")
		return
	}
	if req.Status != models.RequirementOpen {
		utils.RespondWithError(w, http.StatusConflict, msgAlreadyAccepted)
		return
	}

	now := s.now()
	original := req
	req.Status = models.RequirementInProgress
	req.AcceptedBidID = bid.BidID
	req.BookingID = utils.GetUUID()
	req.UpdatedAt = now
	if err := s.requirements.UpdateIf(ctx, req, models.RequirementOpen); err != nil {
		if errors.Is(err, db.ErrStale) {
			utils.RespondWithError(w, http.StatusConflict, msgAlreadyAccepted)
			return
		}
		respondStoreError(w, err, "Requirement", "accept bid")
		return
	}

	if err := s.bids.SetStatusIf(ctx, bid.BidID, models.BidPending, models.BidAccepted); err != nil {
		if rbErr := s.requirements.UpdateIf(ctx, original, models.RequirementInProgress); rbErr != nil {
			log.Printf("[booking] roll back requirement %s: %v", req.RequirementID, rbErr)
		}
		if errors.Is(err, db.ErrStale) {
			utils.RespondWithError(w, http.StatusConflict, "Bid is no longer pending")
			return
		}
		respondStoreError(w, err, "Bid", "accept bid")
		return
	}
	bid.Status = models.BidAccepted
	bid.UpdatedAt = now

	booking := models.NewBookingFromBid(req.BookingID, req, bid, now)
	if err := s.bookings.Create(ctx, booking); err != nil {
		log.Printf("[booking] create booking for bid %s: %v", bid.BidID, err)
		s.undoAccept(ctx, original, bid.BidID)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create booking")
		return
	}

	rejected, err := s.bids.RejectPending(ctx, req.RequirementID, bid.BidID)
	if err != nil {
		log.Printf("[booking] reject sibling bids of %s: %v", req.RequirementID, err)
	}

	s.notify(ctx, mq.BidAccepted, bid.BidderID, "Bid accepted",
		fmt.Sprintf("Your bid of ₹%.2f was accepted", bid.ProposedAmount),
		map[string]interface{}{"requirementId": req.RequirementID, "bidId": bid.BidID, "bookingId": booking.BookingID})
	for _, b := range rejected {
		s.notify(ctx, mq.BidRejected, b.BidderID, "Bid not selected",
			"The farmer accepted another bid", map[string]interface{}{"requirementId": req.RequirementID, "bidId": b.BidID})
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":     true,
		"bid":         bid,
		"booking":     booking,
		"requirement": req,
		"rejected":    len(rejected),
	})
}

// undoAccept returns the bid to pending and the requirement to open.
func (s *Service) undoAccept(ctx context.Context, original models.Requirement, bidID string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.bids.SetStatusIf(ctx, bidID, models.BidAccepted, models.BidPending); err != nil {
		log.Printf("[booking] roll back bid %s: %v", bidID, err)
	}
	if err := s.requirements.UpdateIf(ctx, original, models.RequirementInProgress); err != nil {
		log.Printf("[booking] roll back requirement %s: %v", original.RequirementID, err)
	}
}

// RejectBid moves a pending bid to rejected.
func (s *Service) RejectBid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	bid, req, ok := s.bidForFarmer(ctx, w, r, ps)
	if !ok {
		return
	}
	if !bid.Status.CanTransition(models.BidRejected) {
		respondResolved(w, bid)
		return
	}
	if err := s.bids.SetStatusIf(ctx, bid.BidID, models.BidPending, models.BidRejected); err != nil {
		if errors.Is(err, db.ErrStale) {
			utils.RespondWithError(w, http.StatusConflict, "Bid is no longer pending")
			return
		}
		respondStoreError(w, err, "Bid", "reject bid")
		return
	}
	bid.Status = models.BidRejected
	bid.UpdatedAt = s.now()
	s.notify(ctx, mq.BidRejected, bid.BidderID, "Bid rejected",
		"Your bid was rejected", map[string]interface{}{"requirementId": req.RequirementID, "bidId": bid.BidID})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "bid": bid})
}
