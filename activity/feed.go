package activity

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cropconnect/models"
)

type Kind string

const (
	Debit   Kind = "debit"
	Credit  Kind = "credit"
	Pending Kind = "pending"
)

// Record is one row of the merged activity feed.
type Record struct {
	ID          string          `json:"id"`
	Type        Kind            `json:"type"`
	Category    models.Category `json:"category"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Status      string          `json:"status"`
	Date        *time.Time      `json:"date,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Source      string          `json:"source"`
	// Reference names the booking or order the row is about, as "booking:<id>"
	// or "order:<id>". Ledger rows carry the reference they paid for.
	Reference string `json:"reference,omitempty"`
}

const txnPrefix = "txn:"

// Ledger reports whether the row is a recorded payment.
func (r Record) Ledger() bool { return strings.HasPrefix(r.ID, txnPrefix) }

// when is the date filters compare against.
func (r Record) when() time.Time {
	if r.Date != nil && !r.Date.IsZero() {
		return *r.Date
	}
	return r.CreatedAt
}

type Source struct {
	ID    string
	Fetch func(ctx context.Context) ([]Record, error)
}

type Result struct {
	Records       []Record `json:"records"`
	FailedSources []string `json:"failedSources"`
}

// FanOut runs every source concurrently and merges what succeeded.
// A failing source is listed in FailedSources; it never fails the feed.
func FanOut(ctx context.Context, sources ...Source) Result {
	parts := make([][]Record, len(sources))
	failed := make([]bool, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			recs, err := src.Fetch(ctx)
			if err != nil {
				log.Printf("[activity] source %s: %v", src.ID, err)
				failed[i] = true
				return nil
			}
			for j := range recs {
				if recs[j].Source == "" {
					recs[j].Source = src.ID
				}
			}
			parts[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Records: []Record{}, FailedSources: []string{}}
	for i, p := range parts {
		if failed[i] {
			res.FailedSources = append(res.FailedSources, sources[i].ID)
			continue
		}
		res.Records = append(res.Records, p...)
	}
	SortNewest(res.Records)
	return res
}

// SortNewest orders records by createdAt descending, keeping ties in place.
func SortNewest(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
