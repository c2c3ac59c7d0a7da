package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"cropconnect/db"
	"cropconnect/models"
)

type MemoryRequirements struct {
	mu   sync.RWMutex
	byID map[string]models.Requirement
}

func NewMemoryRequirements() *MemoryRequirements {
	return &MemoryRequirements{byID: make(map[string]models.Requirement)}
}

func (s *MemoryRequirements) Create(_ context.Context, r models.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.RequirementID]; ok {
		return db.ErrDuplicate
	}
	s.byID[r.RequirementID] = r
	return nil
}

func (s *MemoryRequirements) Get(_ context.Context, id string) (models.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return models.Requirement{}, db.ErrNotFound
	}
	return r, nil
}

func (s *MemoryRequirements) List(_ context.Context, q RequirementQuery) ([]models.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Requirement{}
	for _, r := range s.byID {
		if q.Kind != "" && r.Kind != q.Kind {
			continue
		}
		if q.FarmerID != "" && r.FarmerID != q.FarmerID {
			continue
		}
		if q.OpenOnly && r.Status != models.RequirementOpen {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryRequirements) UpdateIf(_ context.Context, r models.Requirement, expect models.RequirementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[r.RequirementID]
	if !ok || cur.Status != expect {
		return db.ErrStale
	}
	s.byID[r.RequirementID] = r
	return nil
}

type MemoryBids struct {
	mu   sync.RWMutex
	byID map[string]models.Bid
}

func NewMemoryBids() *MemoryBids {
	return &MemoryBids{byID: make(map[string]models.Bid)}
}

func (s *MemoryBids) Create(_ context.Context, b models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[b.BidID]; ok {
		return db.ErrDuplicate
	}
	s.byID[b.BidID] = b
	return nil
}

func (s *MemoryBids) Get(_ context.Context, id string) (models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byID[id]
	if !ok {
		return models.Bid{}, db.ErrNotFound
	}
	return b, nil
}

func (s *MemoryBids) filter(keep func(models.Bid) bool) []models.Bid {
	out := []models.Bid{}
	for _, b := range s.byID {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryBids) ForRequirement(_ context.Context, requirementID string) ([]models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(b models.Bid) bool { return b.RequirementID == requirementID }), nil
}

func (s *MemoryBids) ForBidder(_ context.Context, bidderID string) ([]models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(b models.Bid) bool { return b.BidderID == bidderID }), nil
}

func (s *MemoryBids) HasPending(_ context.Context, requirementID, bidderID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.byID {
		if b.RequirementID == requirementID && b.BidderID == bidderID && b.Status == models.BidPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryBids) SetStatusIf(_ context.Context, id string, expect, status models.BidStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok || b.Status != expect {
		return db.ErrStale
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	s.byID[id] = b
	return nil
}

func (s *MemoryBids) RejectPending(_ context.Context, requirementID, keep string) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []models.Bid
	now := time.Now()
	for id, b := range s.byID {
		if b.RequirementID != requirementID || b.BidID == keep || b.Status != models.BidPending {
			continue
		}
		b.Status = models.BidRejected
		b.UpdatedAt = now
		s.byID[id] = b
		changed = append(changed, b)
	}
	return changed, nil
}

type MemoryBookings struct {
	mu   sync.RWMutex
	byID map[string]models.Booking
}

func NewMemoryBookings() *MemoryBookings {
	return &MemoryBookings{byID: make(map[string]models.Booking)}
}

func (s *MemoryBookings) Create(_ context.Context, b models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[b.BookingID]; ok {
		return db.ErrDuplicate
	}
	s.byID[b.BookingID] = b
	return nil
}

func (s *MemoryBookings) Get(_ context.Context, id string) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byID[id]
	if !ok {
		return models.Booking{}, db.ErrNotFound
	}
	return b, nil
}

func (s *MemoryBookings) ForRequirement(_ context.Context, requirementID string) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.byID {
		if b.RequirementID == requirementID {
			return b, nil
		}
	}
	return models.Booking{}, db.ErrNotFound
}

func (s *MemoryBookings) ForUser(_ context.Context, q BookingQuery) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Booking{}
	for _, b := range s.byID {
		if !b.IsParty(q.UserID) {
			continue
		}
		if q.ServiceType != "" && b.ServiceType != q.ServiceType {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryBookings) ProviderBusy(_ context.Context, providerID string, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	y, m, d := day.Date()
	for _, b := range s.byID {
		if b.ProviderID != providerID || b.BookingDate == nil || b.Status.Terminal() {
			continue
		}
		by, bm, bd := b.BookingDate.In(day.Location()).Date()
		if by == y && bm == m && bd == d {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryBookings) UpdateIf(_ context.Context, b models.Booking, expect models.BookingStatus, expectPay models.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[b.BookingID]
	if !ok || cur.Status != expect || cur.PaymentStatus != expectPay {
		return db.ErrStale
	}
	if b.GatewayOrderID != "" {
		for id, other := range s.byID {
			if id != b.BookingID && other.GatewayOrderID == b.GatewayOrderID {
				return db.ErrDuplicate
			}
		}
	}
	s.byID[b.BookingID] = b
	return nil
}
