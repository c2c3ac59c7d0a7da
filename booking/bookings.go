package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"cropconnect/models"
	"cropconnect/mq"
	"cropconnect/pay"
	"cropconnect/utils"
)

type directBookingInput struct {
	ServiceType   models.ServiceKind          `json:"serviceType"`
	ProviderID    string                      `json:"providerId"`
	BookingDate   string                      `json:"bookingDate"`
	Location      models.Location             `json:"location"`
	Description   string                      `json:"description"`
	TotalCost     float64                     `json:"totalCost"`
	PaymentMethod models.BookingPaymentMethod `json:"paymentMethod"`
}

func (in directBookingInput) validate(farmerID string) (*time.Time, error) {
	if !in.ServiceType.Valid() {
		return nil, models.FieldError("serviceType", "must be worker or tractor")
	}
	if strings.TrimSpace(in.ProviderID) == "" {
		return nil, models.FieldError("providerId", "is required")
	}
	if in.ProviderID == farmerID {
		return nil, models.Invalid("providerId", "You cannot book yourself")
	}
	date := utils.ParseDate(in.BookingDate)
	if date == nil {
		return nil, models.FieldError("bookingDate", "is required")
	}
	if in.TotalCost <= 0 {
		return nil, models.FieldError("totalCost", "must be greater than 0")
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return nil, models.FieldError("paymentMethod", "must be pay_now or pay_after_work")
	}
	return date, nil
}

// CreateBooking books a provider directly, without a requirement. The
// provider confirms it through the status endpoint.
func (s *Service) CreateBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in directBookingInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	farmerID := utils.GetUserIDFromRequest(r)
	date, err := in.validate(farmerID)
	if err != nil {
		respondValidation(w, err)
		return
	}

	release, ok := s.lock(ctx, w, "provider:"+in.ProviderID, "Provider is being booked, try again")
	if !ok {
		return
	}
	defer release()

	busy, err := s.bookings.ProviderBusy(ctx, in.ProviderID, *date)
	if err != nil {
		respondStoreError(w, err, "Booking", "create booking")
		return
	}
	if busy {
		utils.RespondWithError(w, http.StatusConflict, "Provider is already booked on that date")
		return
	}

	now := s.now()
	b := models.Booking{
		BookingID:     utils.GetUUID(),
		ServiceType:   in.ServiceType,
		FarmerID:      farmerID,
		ProviderID:    in.ProviderID,
		BookingDate:   date,
		Location:      in.Location,
		Description:   strings.TrimSpace(in.Description),
		TotalCost:     in.TotalCost,
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		respondStoreError(w, err, "Booking", "create booking")
		return
	}
	s.notify(ctx, mq.BookingCreated, b.ProviderID, "New booking request",
		fmt.Sprintf("You have a new %s booking for %s", b.ServiceType, date.Format("2006-01-02")),
		map[string]interface{}{"bookingId": b.BookingID})
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "booking": b})
}

// ListBookings returns bookings where the caller is farmer or provider.
func (s *Service) ListBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	kind := models.ServiceKind(r.URL.Query().Get("serviceType"))
	if kind != "" && !kind.Valid() {
		utils.RespondWithError(w, http.StatusBadRequest, "serviceType must be worker or tractor")
		return
	}
	list, err := s.BookingsFor(ctx, utils.GetUserIDFromRequest(r), kind)
	if err != nil {
		respondStoreError(w, err, "Booking", "fetch bookings")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "bookings": list})
}

func (s *Service) partyBooking(ctx context.Context, w http.ResponseWriter, r *http.Request, ps httprouter.Params) (models.Booking, bool) {
	b, err := s.bookings.Get(ctx, ps.ByName("id"))
	if err != nil {
		respondStoreError(w, err, "Booking", "fetch booking")
		return b, false
	}
	if !b.IsParty(utils.GetUserIDFromRequest(r)) {
		// not revealing bookings of other users
		utils.RespondWithError(w, http.StatusNotFound, "Booking not found")
		return b, false
	}
	return b, true
}

func (s *Service) GetBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, ok := s.partyBooking(ctx, w, r, ps)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "booking": b})
}

// save writes b if its status and payment status are still what was read.
func (s *Service) save(ctx context.Context, w http.ResponseWriter, b models.Booking, expect models.BookingStatus, expectPay models.PaymentStatus) bool {
	b.UpdatedAt = s.now()
	if err := s.bookings.UpdateIf(ctx, b, expect, expectPay); err != nil {
		respondStoreError(w, err, "Booking", "update booking")
		return false
	}
	return true
}

// UpdateBookingStatus moves a booking forward. Only the provider confirms or
// starts the work; either party may complete it.
func (s *Service) UpdateBookingStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		Status models.BookingStatus `json:"status"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if in.Status == models.BookingCancelled {
		utils.RespondWithError(w, http.StatusBadRequest, "Use the cancel endpoint with a reason")
		return
	}
	b, ok := s.partyBooking(ctx, w, r, ps)
	if !ok {
		return
	}
	userID := utils.GetUserIDFromRequest(r)
	if !b.Status.CanTransition(in.Status) {
		utils.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("Cannot move booking from %s to %s", b.Status, in.Status))
		return
	}
	if in.Status != models.BookingCompleted && userID != b.ProviderID {
		utils.RespondWithError(w, http.StatusForbidden, "Only the provider can "+strings.ReplaceAll(string(in.Status), "_", " ")+" this booking")
		return
	}

	expect := b.Status
	b.Status = in.Status
	if !s.save(ctx, w, b, expect, b.PaymentStatus) {
		return
	}
	if b.Status == models.BookingCompleted && b.RequirementID != "" {
		s.finishRequirement(ctx, b.RequirementID)
	}
	s.notify(ctx, mq.BookingStatus, b.Counterparty(userID), "Booking "+string(b.Status),
		"Booking "+b.BookingID+" is now "+string(b.Status),
		map[string]interface{}{"bookingId": b.BookingID, "status": b.Status})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "booking": b})
}

// finishRequirement completes the requirement a completed booking came from.
func (s *Service) finishRequirement(ctx context.Context, id string) {
	req, err := s.requirements.Get(ctx, id)
	if err != nil || !req.Status.CanTransition(models.RequirementCompleted) {
		return
	}
	expect := req.Status
	req.Status = models.RequirementCompleted
	req.UpdatedAt = s.now()
	_ = s.requirements.UpdateIf(ctx, req, expect)
}

func respondCancelError(w http.ResponseWriter, err error, b models.Booking) {
	switch {
	case errors.Is(err, models.ErrAlreadyPaid):
		utils.RespondWithError(w, http.StatusConflict, "Booking is already paid and cannot be cancelled")
	case errors.Is(err, models.ErrInvalidTransition):
		utils.RespondWithError(w, http.StatusBadRequest, "Booking cannot be cancelled once it is "+string(b.Status))
	case errors.Is(err, models.ErrReasonRequired):
		utils.RespondWithError(w, http.StatusBadRequest, "Cancellation reason is required")
	default:
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	}
}

// CancelBooking cancels an unpaid booking with a reason.
func (s *Service) CancelBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		Reason string `json:"reason"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	b, ok := s.partyBooking(ctx, w, r, ps)
	if !ok {
		return
	}
	if err := b.CanCancel(in.Reason); err != nil {
		respondCancelError(w, err, b)
		return
	}
	expect := b.Status
	b.Status = models.BookingCancelled
	b.CancellationReason = strings.TrimSpace(in.Reason)
	if !s.save(ctx, w, b, expect, models.PaymentPending) {
		return
	}
	if b.RequirementID != "" {
		s.cancelRequirement(ctx, b.RequirementID)
	}
	userID := utils.GetUserIDFromRequest(r)
	s.notify(ctx, mq.BookingStatus, b.Counterparty(userID), "Booking cancelled",
		"Booking "+b.BookingID+" was cancelled: "+b.CancellationReason,
		map[string]interface{}{"bookingId": b.BookingID, "status": b.Status})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "booking": b})
}

func (s *Service) cancelRequirement(ctx context.Context, id string) {
	req, err := s.requirements.Get(ctx, id)
	if err != nil || req.Status != models.RequirementInProgress {
		return
	}
	req.Status = models.RequirementCancelled
	req.UpdatedAt = s.now()
	_ = s.requirements.UpdateIf(ctx, req, models.RequirementInProgress)
}

// SetPaymentMethod lets the farmer choose pay_now or pay_after_work.
func (s *Service) SetPaymentMethod(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		PaymentMethod models.BookingPaymentMethod `json:"paymentMethod"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if !in.PaymentMethod.Valid() {
		utils.RespondWithError(w, http.StatusBadRequest, "paymentMethod must be pay_now or pay_after_work")
		return
	}
	b, ok := s.partyBooking(ctx, w, r, ps)
	if !ok {
		return
	}
	if utils.GetUserIDFromRequest(r) != b.FarmerID {
		utils.RespondWithError(w, http.StatusForbidden, "Only the farmer can choose the payment method")
		return
	}
	if b.PaymentStatus == models.PaymentPaid {
		utils.RespondWithError(w, http.StatusConflict, "Booking is already paid")
		return
	}
	if b.Status == models.BookingCancelled {
		utils.RespondWithError(w, http.StatusBadRequest, "Booking is cancelled")
		return
	}
	b.PaymentMethod = in.PaymentMethod
	if !s.save(ctx, w, b, b.Status, b.PaymentStatus) {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "booking": b})
}

func (s *Service) markPaid(ctx context.Context, w http.ResponseWriter, b models.Booking, method models.TxnMethod, paymentID string) (models.Booking, bool) {
	expect := b.Status
	b.PaymentStatus = models.PaymentPaid
	if !s.save(ctx, w, b, expect, models.PaymentPending) {
		return b, false
	}
	s.payments.Record(ctx, models.Transaction{
		PayerID:          b.FarmerID,
		PayeeID:          b.ProviderID,
		ReferenceType:    models.RefBooking,
		ReferenceID:      b.BookingID,
		Category:         models.CategoryOf(b.ServiceType),
		Amount:           b.TotalCost,
		Method:           method,
		GatewayPaymentID: paymentID,
		Description:      fmt.Sprintf("%s booking %s", b.ServiceType, b.BookingID),
	})
	s.notify(ctx, mq.BookingPaid, b.ProviderID, "Booking paid",
		fmt.Sprintf("₹%.2f received for booking %s", b.TotalCost, b.BookingID),
		map[string]interface{}{"bookingId": b.BookingID, "method": method})
	return b, true
}

// VerifyPayment settles a pay_now booking from a gateway checkout result.
func (s *Service) VerifyPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var v models.PaymentVerification
	if err := utils.DecodeJSON(r, &v); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	b, ok := s.partyBooking(ctx, w, r, ps)
	if !ok {
		return
	}
	if utils.GetUserIDFromRequest(r) != b.FarmerID {
		utils.RespondWithError(w, http.StatusForbidden, "Only the farmer pays for a booking")
		return
	}
	if b.PaymentStatus == models.PaymentPaid {
		utils.RespondWithError(w, http.StatusConflict, "Booking is already paid")
		return
	}
	if b.Status == models.BookingCancelled {
		utils.RespondWithError(w, http.StatusBadRequest, "Booking is cancelled")
		return
	}
	claim := pay.Claim{
		UserID:      b.FarmerID,
		Purpose:     models.RefBooking,
		ReferenceID: b.BookingID,
		UsedBy:      b.BookingID,
		Amount:      b.TotalCost,
	}
	if err := s.payments.Confirm(ctx, claim, v); err != nil {
		code, msg := pay.PaymentError(err)
		utils.RespondWithError(w, code, msg)
		return
	}

	b.PaymentMethod = models.PayNow
	b.GatewayOrderID = v.OrderID
	b.GatewayPaymentID = v.PaymentID
	b, ok = s.markPaid(ctx, w, b, models.MethodRazorpay, v.PaymentID)
	if !ok {
		s.payments.Release(ctx, v.OrderID, b.BookingID)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "booking": b})
}

// SettleCash lets the provider record cash received for a pay_after_work booking.
func (s *Service) SettleCash(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, ok := s.partyBooking(ctx, w, r, ps)
	if !ok {
		return
	}
	if utils.GetUserIDFromRequest(r) != b.ProviderID {
		utils.RespondWithError(w, http.StatusForbidden, "Only the provider can record a cash payment")
		return
	}
	if b.PaymentMethod != models.PayAfterWork {
		utils.RespondWithError(w, http.StatusBadRequest, "Booking is not pay after work")
		return
	}
	if b.PaymentStatus == models.PaymentPaid {
		utils.RespondWithError(w, http.StatusConflict, "Booking is already paid")
		return
	}
	if b.Status == models.BookingCancelled || b.Status == models.BookingPending {
		utils.RespondWithError(w, http.StatusBadRequest, "Booking is "+string(b.Status))
		return
	}
	b, ok = s.markPaid(ctx, w, b, models.MethodCash, "")
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "booking": b})
}
