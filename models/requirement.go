package models

import (
	"strings"
	"time"
)

// ServiceKind distinguishes worker hiring from tractor hiring.
type ServiceKind string

const (
	ServiceWorker  ServiceKind = "worker"
	ServiceTractor ServiceKind = "tractor"
)

func (k ServiceKind) Valid() bool {
	return k == ServiceWorker || k == ServiceTractor
}

// ProviderRole is the role allowed to bid on a requirement of this kind.
func (k ServiceKind) ProviderRole() Role {
	if k == ServiceTractor {
		return RoleTractorOwner
	}
	return RoleWorker
}

type Location struct {
	Village  string `json:"village,omitempty" bson:"village,omitempty"`
	District string `json:"district,omitempty" bson:"district,omitempty"`
	State    string `json:"state,omitempty" bson:"state,omitempty"`
}

func (l Location) Empty() bool {
	return strings.TrimSpace(l.Village) == "" &&
		strings.TrimSpace(l.District) == "" &&
		strings.TrimSpace(l.State) == ""
}

func (l Location) String() string {
	var parts []string
	for _, p := range []string{l.Village, l.District, l.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Requirement is a farmer's posted need for a worker or a tractor.
type Requirement struct {
	RequirementID    string            `json:"requirementId" bson:"requirementId"`
	Kind             ServiceKind       `json:"kind" bson:"kind"`
	FarmerID         string            `json:"farmerId" bson:"farmerId"`
	Title            string            `json:"title,omitempty" bson:"title,omitempty"`
	WorkDescription  string            `json:"workDescription" bson:"workDescription"`
	Location         Location          `json:"location" bson:"location"`
	StartDate        *time.Time        `json:"startDate,omitempty" bson:"startDate,omitempty"`
	EndDate          *time.Time        `json:"endDate,omitempty" bson:"endDate,omitempty"`
	WagesOffered     float64           `json:"wagesOffered,omitempty" bson:"wagesOffered,omitempty"`
	Budget           float64           `json:"budget,omitempty" bson:"budget,omitempty"`
	MinAge           int               `json:"minAge,omitempty" bson:"minAge,omitempty"`
	MaxAge           int               `json:"maxAge,omitempty" bson:"maxAge,omitempty"`
	GenderPreference string            `json:"genderPreference,omitempty" bson:"genderPreference,omitempty"`
	MinExperience    int               `json:"minExperience,omitempty" bson:"minExperience,omitempty"`
	WorkersNeeded    int               `json:"workersNeeded,omitempty" bson:"workersNeeded,omitempty"`
	TractorType      string            `json:"tractorType,omitempty" bson:"tractorType,omitempty"`
	LandSize         float64           `json:"landSize,omitempty" bson:"landSize,omitempty"`
	Status           RequirementStatus `json:"status" bson:"status"`
	AcceptedBidID    string            `json:"acceptedBidId,omitempty" bson:"acceptedBidId,omitempty"`
	BookingID        string            `json:"bookingId,omitempty" bson:"bookingId,omitempty"`
	CreatedAt        time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// Offered is the wage (worker) or budget (tractor) the farmer posted.
func (r Requirement) Offered() float64 {
	if r.Kind == ServiceTractor {
		return r.Budget
	}
	return r.WagesOffered
}

// Validate checks the fields a requirement needs before it can be posted.
func (r Requirement) Validate() error {
	if !r.Kind.Valid() {
		return FieldError("kind", "must be worker or tractor")
	}
	if r.Offered() <= 0 {
		if r.Kind == ServiceTractor {
			return FieldError("budget", "must be greater than 0")
		}
		return FieldError("wagesOffered", "must be greater than 0")
	}
	if r.Location.Empty() {
		return FieldError("location", "at least one location field is required")
	}
	if r.StartDate == nil || r.StartDate.IsZero() {
		return FieldError("startDate", "is required")
	}
	if r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return FieldError("endDate", "must not be before startDate")
	}
	if r.MinAge > 0 && r.MaxAge > 0 && r.MinAge > r.MaxAge {
		return FieldError("minAge", "must not exceed maxAge")
	}
	return nil
}

// Bid is a provider's proposal against a requirement.
type Bid struct {
	BidID            string      `json:"bidId" bson:"bidId"`
	RequirementID    string      `json:"requirementId" bson:"requirementId"`
	RequirementKind  ServiceKind `json:"requirementKind" bson:"requirementKind"`
	BidderID         string      `json:"bidderId" bson:"bidderId"`
	ProposedAmount   float64     `json:"proposedAmount" bson:"proposedAmount"`
	ProposedDuration string      `json:"proposedDuration" bson:"proposedDuration"`
	ProposedDate     *time.Time  `json:"proposedDate,omitempty" bson:"proposedDate,omitempty"`
	Message          string      `json:"message,omitempty" bson:"message,omitempty"`
	Status           BidStatus   `json:"status" bson:"status"`
	CreatedAt        time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// Proposal is the bidder-supplied part of a bid.
type Proposal struct {
	ProposedAmount   float64    `json:"proposedAmount"`
	ProposedDuration string     `json:"proposedDuration"`
	ProposedDate     *time.Time `json:"proposedDate"`
	Message          string     `json:"message,omitempty"`
}

func (p Proposal) Validate() error {
	if p.ProposedAmount <= 0 {
		return FieldError("proposedAmount", "must be greater than 0")
	}
	if strings.TrimSpace(p.ProposedDuration) == "" {
		return FieldError("proposedDuration", "is required")
	}
	if p.ProposedDate == nil || p.ProposedDate.IsZero() {
		return FieldError("proposedDate", "is required")
	}
	return nil
}

// CountAccepted returns how many bids hold status accepted.
func CountAccepted(bids []Bid) int {
	n := 0
	for _, b := range bids {
		if b.Status == BidAccepted {
			n++
		}
	}
	return n
}
