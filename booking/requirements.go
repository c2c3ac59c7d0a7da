package booking

import (
	"context"
	"errors"
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

type requirementInput struct {
	Title            string          `json:"title"`
	WorkDescription  string          `json:"workDescription"`
	Location         models.Location `json:"location"`
	StartDate        string          `json:"startDate"`
	EndDate          string          `json:"endDate"`
	WagesOffered     float64         `json:"wagesOffered"`
	Budget           float64         `json:"budget"`
	MinAge           int             `json:"minAge"`
	MaxAge           int             `json:"maxAge"`
	GenderPreference string          `json:"genderPreference"`
	MinExperience    int             `json:"minExperience"`
	WorkersNeeded    int             `json:"workersNeeded"`
	TractorType      string          `json:"tractorType"`
	LandSize         float64         `json:"landSize"`
}

// CreateRequirement posts a worker or tractor requirement for the farmer.
func (s *Service) CreateRequirement(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	kind, ok := kindParam(w, ps)
	if !ok {
		return
	}
	var in requirementInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	now := s.now()
	req := models.Requirement{
		RequirementID:    utils.GetUUID(),
		Kind:             kind,
		FarmerID:         utils.GetUserIDFromRequest(r),
		Title:            strings.TrimSpace(in.Title),
		WorkDescription:  strings.TrimSpace(in.WorkDescription),
		Location:         in.Location,
		StartDate:        utils.ParseDate(in.StartDate),
		EndDate:          utils.ParseDate(in.EndDate),
		WagesOffered:     in.WagesOffered,
		Budget:           in.Budget,
		MinAge:           in.MinAge,
		MaxAge:           in.MaxAge,
		GenderPreference: in.GenderPreference,
		MinExperience:    in.MinExperience,
		WorkersNeeded:    in.WorkersNeeded,
		TractorType:      in.TractorType,
		LandSize:         in.LandSize,
		Status:           models.RequirementOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if kind == models.ServiceWorker && req.WorkersNeeded == 0 {
		req.WorkersNeeded = 1
	}
	if err := req.Validate(); err != nil {
		respondValidation(w, err)
		return
	}
	if err := s.requirements.Create(ctx, req); err != nil {
		respondStoreError(w, err, "Requirement", "create requirement")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "requirement": req})
}

// ListRequirements returns open requirements, or all of the caller's own with ?mine=true.
func (s *Service) ListRequirements(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	kind, ok := kindParam(w, ps)
	if !ok {
		return
	}
	q := RequirementQuery{Kind: kind, OpenOnly: true}
	if r.URL.Query().Get("mine") == "true" {
		q = RequirementQuery{Kind: kind, FarmerID: utils.GetUserIDFromRequest(r)}
	}
	list, err := s.requirements.List(ctx, q)
	if err != nil {
		respondStoreError(w, err, "Requirement", "fetch requirements")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "requirements": list})
}

func (s *Service) loadRequirement(ctx context.Context, w http.ResponseWriter, ps httprouter.Params) (models.Requirement, bool) {
	kind, ok := kindParam(w, ps)
	if !ok {
		return models.Requirement{}, false
	}
	req, err := s.requirements.Get(ctx, ps.ByName("id"))
	if err == nil && req.Kind != kind {
		err = db.ErrNotFound
	}
	if err != nil {
		respondStoreError(w, err, "Requirement", "fetch requirement")
		return models.Requirement{}, false
	}
	return req, true
}

func (s *Service) GetRequirement(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	req, ok := s.loadRequirement(ctx, w, ps)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "requirement": req})
}

// CancelRequirement closes an open or in-progress requirement. Pending bids
// are rejected and an unpaid linked booking is cancelled with it.
func (s *Service) CancelRequirement(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		Reason string `json:"reason"`
	}
	_ = utils.DecodeJSON(r, &in)
	reason := utils.FirstNonEmpty(strings.TrimSpace(in.Reason), "Requirement cancelled by farmer")
	s.closeRequirement(ctx, w, r, ps, models.RequirementCancelled, reason)
}

// CompleteRequirement marks an in-progress requirement and its booking completed.
func (s *Service) CompleteRequirement(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	s.closeRequirement(ctx, w, r, ps, models.RequirementCompleted, "")
}

func (s *Service) closeRequirement(ctx context.Context, w http.ResponseWriter, r *http.Request, ps httprouter.Params, to models.RequirementStatus, reason string) {
	req, ok := s.loadRequirement(ctx, w, ps)
	if !ok {
		return
	}
	if req.FarmerID != utils.GetUserIDFromRequest(r) {
		utils.RespondWithError(w, http.StatusForbidden, "Only the farmer who posted this requirement can change it")
		return
	}
	release, ok := s.lock(ctx, w, "requirement:"+req.RequirementID, "Requirement is being updated, try again")
	if !ok {
		return
	}
	defer release()

	req, err := s.requirements.Get(ctx, req.RequirementID)
	if err != nil {
		respondStoreError(w, err, "Requirement", "fetch requirement")
		return
	}
	if !req.Status.CanTransition(to) {
		utils.RespondWithError(w, http.StatusBadRequest, "Cannot move requirement from "+string(req.Status)+" to "+string(to))
		return
	}

	var linked *models.Booking
	if req.BookingID != "" {
		b, err := s.bookings.Get(ctx, req.BookingID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			respondStoreError(w, err, "Booking", "fetch booking")
			return
		}
		if err == nil && !b.Status.Terminal() {
			if to == models.RequirementCancelled {
				if err := b.CanCancel(reason); err != nil {
					respondCancelError(w, err, b)
					return
				}
			}
			linked = &b
		}
	}

	expect := req.Status
	req.Status = to
	req.UpdatedAt = s.now()
	if err := s.requirements.UpdateIf(ctx, req, expect); err != nil {
		respondStoreError(w, err, "Requirement", "update requirement")
		return
	}

	if to == models.RequirementCancelled {
		rejected, err := s.bids.RejectPending(ctx, req.RequirementID, "")
		if err != nil {
			log.Printf("[booking] reject bids of %s: %v", req.RequirementID, err)
		}
		for _, b := range rejected {
			s.notify(ctx, mq.RequirementEnded, b.BidderID, "Requirement closed",
				"The requirement you bid on was cancelled", map[string]interface{}{"requirementId": req.RequirementID})
		}
	}

	if linked != nil {
		b := *linked
		prev := b.Status
		if to == models.RequirementCancelled {
			b.Status = models.BookingCancelled
			b.CancellationReason = reason
		} else {
			// forward through any remaining steps
			b.Status = models.BookingCompleted
		}
		b.UpdatedAt = req.UpdatedAt
		if err := s.bookings.UpdateIf(ctx, b, prev, b.PaymentStatus); err != nil {
			log.Printf("[booking] close linked booking %s: %v", b.BookingID, err)
		} else {
			s.notify(ctx, mq.BookingStatus, b.ProviderID, "Booking "+string(b.Status),
				"Booking "+b.BookingID+" is now "+string(b.Status), map[string]interface{}{"bookingId": b.BookingID, "status": b.Status})
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "requirement": req})
}
