package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"cropconnect/activity"
	"cropconnect/models"
)

// Feed assembles the activity feed on the device from the seven list endpoints.
type Feed struct {
	api     *Transport
	session *Session

	mu   sync.RWMutex
	last activity.Result
}

func NewFeed(api *Transport, session *Session) *Feed {
	return &Feed{api: api, session: session,
		last: activity.Result{Records: []activity.Record{}, FailedSources: []string{}}}
}

func getList[T any](ctx context.Context, api *Transport, path, key string) ([]T, error) {
	var res map[string]json.RawMessage
	if err := api.Do(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	var out []T
	if raw, ok := res[key]; ok {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *Feed) sources(viewer string) []activity.Source {
	bookings := func(kind models.ServiceKind) func(context.Context) ([]activity.Record, error) {
		return func(ctx context.Context) ([]activity.Record, error) {
			list, err := getList[models.Booking](ctx, f.api, "/api/bookings?serviceType="+string(kind), "bookings")
			return activity.FromBookings(viewer, list), err
		}
	}
	requirements := func(kind models.ServiceKind) func(context.Context) ([]activity.Record, error) {
		return func(ctx context.Context) ([]activity.Record, error) {
			list, err := getList[models.Requirement](ctx, f.api, "/api/requirements/"+string(kind)+"?mine=true", "requirements")
			return activity.FromRequirements(list), err
		}
	}
	orders := func(side string) func(context.Context) ([]activity.Record, error) {
		return func(ctx context.Context) ([]activity.Record, error) {
			list, err := getList[models.Order](ctx, f.api, "/api/orders/"+side, "orders")
			return activity.FromOrders(viewer, list), err
		}
	}
	return []activity.Source{
		{ID: activity.SourceTractorBookings, Fetch: bookings(models.ServiceTractor)},
		{ID: activity.SourceWorkerBookings, Fetch: bookings(models.ServiceWorker)},
		{ID: activity.SourceTractorRequirements, Fetch: requirements(models.ServiceTractor)},
		{ID: activity.SourceWorkerRequirements, Fetch: requirements(models.ServiceWorker)},
		{ID: activity.SourceTransactions, Fetch: func(ctx context.Context) ([]activity.Record, error) {
			list, err := getList[models.Transaction](ctx, f.api, "/api/transactions", "transactions")
			return activity.FromTransactions(viewer, list), err
		}},
		{ID: activity.SourceSellerOrders, Fetch: orders("seller")},
		{ID: activity.SourceBuyerOrders, Fetch: orders("buyer")},
	}
}

// BuildActivityFeed queries every source concurrently. Sources that fail are
// reported in FailedSources and the rest of the feed is still returned.
func (f *Feed) BuildActivityFeed(ctx context.Context) (activity.Result, error) {
	if !f.session.Authenticated() {
		return activity.Result{}, ErrUnauthorized
	}
	res := activity.FanOut(ctx, f.sources(f.session.User().UserID)...)
	f.mu.Lock()
	f.last = res
	f.mu.Unlock()
	return res, nil
}

// Last is the most recent feed that was built.
func (f *Feed) Last() activity.Result {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last
}

// View filters and pages the last feed without touching the network.
func (f *Feed) View(q activity.Query, page, limit int) activity.Page {
	return activity.Paginate(activity.Filter(f.Last().Records, q), page, limit)
}

// Summary totals the records of the last feed that match q.
func (f *Feed) Summary(q activity.Query) activity.Summary {
	return activity.Summarize(activity.Filter(f.Last().Records, q))
}

const DefaultPollInterval = 30 * time.Second

// FeedPoller rebuilds the feed on a fixed interval and hands each result to OnUpdate.
type FeedPoller struct {
	Feed     *Feed
	Interval time.Duration
	OnUpdate func(activity.Result)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start builds the feed once right away, then every Interval. A second Start is a no-op.
func (p *FeedPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			p.tick(ctx)
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

func (p *FeedPoller) tick(ctx context.Context) {
	res, err := p.Feed.BuildActivityFeed(ctx)
	if err != nil || ctx.Err() != nil {
		return
	}
	if p.OnUpdate != nil {
		p.OnUpdate(res)
	}
}

// Stop halts polling. No OnUpdate call happens after Stop returns.
func (p *FeedPoller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}
