package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/stats"
)

// Deliverer queues a message for a group (e.g. *delivery.Pool).
type Deliverer interface {
	Enqueue(ctx context.Context, group, message string) <-chan error
}

// Poller periodically queries the feed and pushes fresh matching entries
// to the registered groups. The very first fetch only primes the seen list
// so a new deployment does not flood its groups with the whole query
// window.
type Poller struct {
	fetcher    Fetcher
	settings   *Settings
	pool       Deliverer
	collector  *stats.Collector
	query      string
	maxResults int
	logger     *slog.Logger
}

// NewPoller wires a poller. collector counts delivered entries by primary
// category.
func NewPoller(fetcher Fetcher, settings *Settings, pool Deliverer, collector *stats.Collector, query string, maxResults int, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher:    fetcher,
		settings:   settings,
		pool:       pool,
		collector:  collector,
		query:      query,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Run polls until ctx is canceled. The interval is re-read every cycle, so
// an interval change applies once the current sleep finishes.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("feed poller running", "query", p.query, "interval", p.settings.Interval())
	for {
		p.cycle(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("feed poller stopping")
			return
		case <-time.After(p.settings.Interval()):
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	entries, err := p.fetcher.Fetch(ctx, p.query, p.maxResults)
	if err != nil {
		p.logger.Warn("feed fetch failed", "err", err)
		return
	}

	fresh := p.settings.Unseen(entries)
	if len(fresh) == 0 {
		return
	}
	prime := p.settings.SeenCount() == 0

	// Entries are marked seen before delivery: duplicates in chat are
	// worse than a paper lost to a crash mid-cycle.
	ids := make([]string, 0, len(fresh))
	for _, e := range fresh {
		ids = append(ids, e.ID)
	}
	if err := p.settings.MarkSeen(ids); err != nil {
		p.logger.Warn("saving seen entries failed", "err", err)
	}
	if prime {
		p.logger.Info("feed baseline primed", "entries", len(fresh))
		return
	}

	groups := p.settings.Groups()
	if len(groups) == 0 {
		return
	}

	pushed := 0
	// The feed is newest first; deliver oldest first so the chat reads in
	// publication order.
	for i := len(fresh) - 1; i >= 0; i-- {
		e := fresh[i]
		if !p.settings.Matches(e) {
			continue
		}
		category := e.Category
		if category == "" {
			category = "unknown"
		}
		p.collector.Record(category)
		pushed++

		msg := e.Message()
		for _, g := range groups {
			if err := <-p.pool.Enqueue(ctx, g, msg); err != nil {
				p.logger.Warn("feed delivery failed", "group", g, "id", e.ID, "err", err)
			}
		}
	}
	if pushed > 0 {
		p.logger.Info("feed entries delivered", "fresh", len(fresh), "pushed", pushed, "groups", len(groups))
	}
}
