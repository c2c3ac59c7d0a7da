package activity

import (
	"fmt"
	"strings"

	"cropconnect/models"
	"cropconnect/utils"
)

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func title(k models.ServiceKind) string {
	if k == models.ServiceTractor {
		return "Tractor"
	}
	return "Worker"
}

// FromBookings maps bookings as seen by viewer: the farmer pays, the provider earns.
func FromBookings(viewer string, bookings []models.Booking) []Record {
	out := make([]Record, 0, len(bookings))
	for _, b := range bookings {
		typ := Credit
		if b.FarmerID == viewer {
			typ = Debit
		}
		desc := title(b.ServiceType) + " booking"
		if loc := b.Location.String(); loc != "" {
			desc += " at " + loc
		}
		out = append(out, Record{
			ID:          "booking:" + b.BookingID,
			Reference:   "booking:" + b.BookingID,
			Type:        typ,
			Category:    models.CategoryOf(b.ServiceType),
			Description: desc,
			Amount:      b.TotalCost,
			Status:      string(b.Status),
			Date:        b.BookingDate,
			CreatedAt:   b.CreatedAt,
		})
	}
	return out
}

// FromRequirements keeps only open requirements; the others show up as bookings.
func FromRequirements(requirements []models.Requirement) []Record {
	out := make([]Record, 0, len(requirements))
	for _, r := range requirements {
		if r.Status != models.RequirementOpen {
			continue
		}
		what := strings.TrimSpace(utils.FirstNonEmpty(r.Title, r.WorkDescription))
		desc := "Open " + strings.ToLower(title(r.Kind)) + " requirement"
		if what != "" {
			desc += ": " + what
		}
		out = append(out, Record{
			ID:          "requirement:" + r.RequirementID,
			Type:        Pending,
			Category:    models.CategoryOf(r.Kind),
			Description: desc,
			Amount:      r.Offered(),
			Status:      string(r.Status),
			Date:        r.StartDate,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}

func FromTransactions(viewer string, txns []models.Transaction) []Record {
	out := make([]Record, 0, len(txns))
	for _, t := range txns {
		typ := Credit
		if t.PayerID == viewer {
			typ = Debit
		}
		desc := t.Description
		if desc == "" {
			desc = fmt.Sprintf("%s payment via %s", t.Category, t.Method)
		}
		at := t.CreatedAt
		out = append(out, Record{
			ID:          txnPrefix + t.TransactionID,
			Reference:   string(t.ReferenceType) + ":" + t.ReferenceID,
			Type:        typ,
			Category:    t.Category,
			Description: desc,
			Amount:      t.Amount,
			Status:      string(t.Status),
			Date:        &at,
			CreatedAt:   t.CreatedAt,
		})
	}
	return out
}

// FromOrders maps orders for viewer. A seller sees only their share.
func FromOrders(viewer string, orders []models.Order) []Record {
	out := make([]Record, 0, len(orders))
	for _, o := range orders {
		r := Record{
			ID:        "order:" + o.OrderID,
			Reference: "order:" + o.OrderID,
			Type:      Debit,
			Category:  models.CategoryMarket,
			Amount:    o.TotalAmount,
			Status:    string(o.Status),
			Date:      o.PickupSchedule.Date,
			CreatedAt: o.CreatedAt,
		}
		if o.BuyerID != viewer {
			r.Type = Credit
			r.Amount = o.SellerTotal(viewer)
			r.ID += ":" + viewer
		}
		r.Description = fmt.Sprintf("Market order %s (%d items)", short(o.OrderID), len(o.Items))
		out = append(out, r)
	}
	return out
}
