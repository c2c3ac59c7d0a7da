package activity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cropconnect/models"
)

// Query narrows a feed. Zero fields match everything.
type Query struct {
	Type     Kind
	Category models.Category
	From     *time.Time
	To       *time.Time
	Search   string
}

// Filter returns the records matching q in their original order.
func Filter(recs []Record, q Query) []Record {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	var to time.Time
	if q.To != nil {
		to = endOfDay(*q.To)
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		if q.Category != "" && r.Category != q.Category {
			continue
		}
		when := r.when()
		if q.From != nil && when.Before(*q.From) {
			continue
		}
		if q.To != nil && when.After(to) {
			continue
		}
		if search != "" && !matches(r, search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// endOfDay widens a date-only bound to include the whole day.
func endOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t
}

func matches(r Record, needle string) bool {
	for _, hay := range []string{r.Description, r.Status, r.ID, string(r.Category)} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

type Page struct {
	Records    []Record `json:"records"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	Total      int      `json:"total"`
	TotalPages int      `json:"totalPages"`
}

const defaultLimit = 20

// Paginate slices recs into 1-based pages. Out of range pages are empty.
func Paginate(recs []Record, page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	p := Page{Records: []Record{}, Page: page, Limit: limit, Total: len(recs)}
	p.TotalPages = (len(recs) + limit - 1) / limit
	start := (page - 1) * limit
	if start >= len(recs) {
		return p
	}
	p.Records = recs[start:min(start+limit, len(recs))]
	return p
}

type Summary struct {
	Count      int                         `json:"count"`
	Debit      float64                     `json:"totalDebit"`
	Credit     float64                     `json:"totalCredit"`
	Pending    int                         `json:"pendingCount"`
	ByCategory map[models.Category]float64 `json:"byCategory"`
}

// Summarize totals debits and credits. Pending rows are counted, not summed.
// Ledger rows are money that moved; a booking or order row adds to the totals
// only while no ledger row settles it, and never once cancelled.
func Summarize(recs []Record) Summary {
	settled := map[string]bool{}
	for _, r := range recs {
		if r.Ledger() && r.Status != string(models.TxnFailed) && r.Reference != "" {
			settled[r.Reference] = true
		}
	}

	debit, credit := decimal.Zero, decimal.Zero
	cats := map[models.Category]decimal.Decimal{}
	s := Summary{Count: len(recs), ByCategory: map[models.Category]float64{}}
	for _, r := range recs {
		if r.Type == Pending {
			s.Pending++
			continue
		}
		if !counts(r, settled) {
			continue
		}
		amt := decimal.NewFromFloat(r.Amount)
		switch r.Type {
		case Debit:
			debit = debit.Add(amt)
		case Credit:
			credit = credit.Add(amt)
		}
		cats[r.Category] = cats[r.Category].Add(amt)
	}
	s.Debit = debit.Round(2).InexactFloat64()
	s.Credit = credit.Round(2).InexactFloat64()
	for c, v := range cats {
		s.ByCategory[c] = v.Round(2).InexactFloat64()
	}
	return s
}

func counts(r Record, settled map[string]bool) bool {
	if r.Ledger() {
		return r.Status != string(models.TxnFailed)
	}
	if r.Status == string(models.BookingCancelled) {
		return false
	}
	return !settled[r.Reference]
}
