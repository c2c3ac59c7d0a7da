package models

import (
	"errors"
	"time"
)

type BookingPaymentMethod string

const (
	PayNow       BookingPaymentMethod = "pay_now"
	PayAfterWork BookingPaymentMethod = "pay_after_work"
)

func (m BookingPaymentMethod) Valid() bool {
	return m == PayNow || m == PayAfterWork
}

// Booking is a confirmed engagement between a farmer and a provider.
type Booking struct {
	BookingID          string               `json:"bookingId" bson:"bookingId"`
	ServiceType        ServiceKind          `json:"serviceType" bson:"serviceType"`
	FarmerID           string               `json:"farmerId" bson:"farmerId"`
	ProviderID         string               `json:"providerId" bson:"providerId"`
	RequirementID      string               `json:"requirementId,omitempty" bson:"requirementId,omitempty"`
	BidID              string               `json:"bidId,omitempty" bson:"bidId,omitempty"`
	BookingDate        *time.Time           `json:"bookingDate,omitempty" bson:"bookingDate,omitempty"`
	Location           Location             `json:"location" bson:"location"`
	Description        string               `json:"description,omitempty" bson:"description,omitempty"`
	TotalCost          float64              `json:"totalCost" bson:"totalCost"`
	Status             BookingStatus        `json:"status" bson:"status"`
	PaymentStatus      PaymentStatus        `json:"paymentStatus" bson:"paymentStatus"`
	PaymentMethod      BookingPaymentMethod `json:"paymentMethod,omitempty" bson:"paymentMethod,omitempty"`
	GatewayOrderID     string               `json:"gatewayOrderId,omitempty" bson:"gatewayOrderId,omitempty"`
	GatewayPaymentID   string               `json:"gatewayPaymentId,omitempty" bson:"gatewayPaymentId,omitempty"`
	CancellationReason string               `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	CreatedAt          time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt" bson:"updatedAt"`
}

var (
	ErrAlreadyPaid       = errors.New("already paid")
	ErrReasonRequired    = errors.New("cancellation reason is required")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// NewBookingFromBid builds the booking created when a farmer accepts a bid.
func NewBookingFromBid(id string, req Requirement, bid Bid, now time.Time) Booking {
	date := bid.ProposedDate
	if date == nil {
		date = req.StartDate
	}
	return Booking{
		BookingID:     id,
		ServiceType:   req.Kind,
		FarmerID:      req.FarmerID,
		ProviderID:    bid.BidderID,
		RequirementID: req.RequirementID,
		BidID:         bid.BidID,
		BookingDate:   date,
		Location:      req.Location,
		Description:   req.WorkDescription,
		TotalCost:     bid.ProposedAmount,
		Status:        BookingConfirmed,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanCancel checks a cancellation request against the booking state.
func (b Booking) CanCancel(reason string) error {
	if b.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	if !b.Status.CanTransition(BookingCancelled) {
		return ErrInvalidTransition
	}
	if isBlank(reason) {
		return ErrReasonRequired
	}
	return nil
}

// IsParty reports whether userID is the farmer or the provider.
func (b Booking) IsParty(userID string) bool {
	return userID != "" && (b.FarmerID == userID || b.ProviderID == userID)
}

// Counterparty returns the other side of the booking for userID.
func (b Booking) Counterparty(userID string) string {
	if b.FarmerID == userID {
		return b.ProviderID
	}
	return b.FarmerID
}
