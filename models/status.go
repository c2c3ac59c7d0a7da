package models

import "slices"

// transitions lists, per state, the states it may move to.
type transitions[S ~string] map[S][]S

func (t transitions[S]) allows(from, to S) bool {
	return slices.Contains(t[from], to)
}

type RequirementStatus string

const (
	RequirementOpen       RequirementStatus = "open"
	RequirementInProgress RequirementStatus = "in_progress"
	RequirementCompleted  RequirementStatus = "completed"
	RequirementCancelled  RequirementStatus = "cancelled"
)

var requirementFlow = transitions[RequirementStatus]{
	RequirementOpen:       {RequirementInProgress, RequirementCancelled},
	RequirementInProgress: {RequirementCompleted, RequirementCancelled},
}

func (s RequirementStatus) CanTransition(to RequirementStatus) bool {
	return requirementFlow.allows(s, to)
}

func (s RequirementStatus) Terminal() bool {
	return s == RequirementCompleted || s == RequirementCancelled
}

type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
)

var bidFlow = transitions[BidStatus]{
	BidPending: {BidAccepted, BidRejected},
}

func (s BidStatus) CanTransition(to BidStatus) bool {
	return bidFlow.allows(s, to)
}

func (s BidStatus) Terminal() bool {
	return s == BidAccepted || s == BidRejected
}

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

var bookingFlow = transitions[BookingStatus]{
	BookingPending:    {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingInProgress, BookingCancelled},
	BookingInProgress: {BookingCompleted},
}

func (s BookingStatus) CanTransition(to BookingStatus) bool {
	return bookingFlow.allows(s, to)
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPicked    OrderStatus = "picked"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

var orderFlow = transitions[OrderStatus]{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderPicked, OrderCancelled},
	OrderPicked:    {OrderCompleted},
}

func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return orderFlow.allows(s, to)
}

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)
