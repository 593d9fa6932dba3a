// Package dispatch routes classified webhook events to subscribed groups.
package dispatch

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/dedupe"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/delivery"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/event"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/stats"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/subscription"
)

// Result describes what happened to one inbound event.
type Result struct {
	Kind      event.Kind
	RawKind   string
	Summary   string
	Ping      bool
	Duplicate bool
	Filtered  bool              // bot event dropped by the bot filter
	Delivered []string          // groups whose delivery succeeded
	Failed    map[string]string // group → failure description
}

// Dispatcher classifies inbound webhook requests, counts them, and fans the
// rendered summary out to every subscribed group. An event is counted exactly
// once no matter how many groups receive it, and a failing group never
// prevents delivery to the others.
type Dispatcher struct {
	classifier *event.Classifier
	deduper    dedupe.Deduper
	table      *subscription.Table
	collector  *stats.Collector
	pool       *delivery.Pool
	logger     *slog.Logger

	// FilterBots drops events whose sender is a bot account. Dropped events
	// are still counted.
	FilterBots bool
}

// New wires a dispatcher from its collaborators.
func New(
	classifier *event.Classifier,
	deduper dedupe.Deduper,
	table *subscription.Table,
	collector *stats.Collector,
	pool *delivery.Pool,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		classifier: classifier,
		deduper:    deduper,
		table:      table,
		collector:  collector,
		pool:       pool,
		logger:     logger,
	}
}

// Handle processes one inbound webhook request. A classification failure is
// returned to the caller (nothing counted, nothing delivered); every other
// path acknowledges the event with a Result.
func (d *Dispatcher) Handle(ctx context.Context, header http.Header, body []byte) (Result, error) {
	rec, err := d.classifier.Classify(header, body)
	if err != nil {
		return Result{}, err
	}

	res := Result{Kind: rec.Kind, RawKind: rec.RawKind, Summary: rec.Summary}

	// Redeliveries are acknowledged but neither counted nor delivered.
	// A dedupe backend failure fails open: better a rare duplicate message
	// than a dropped webhook.
	if rec.Delivery != "" {
		seen, err := d.deduper.Seen(ctx, rec.Delivery)
		if err != nil {
			d.logger.Warn("dedupe check failed", "delivery", rec.Delivery, "err", err)
		} else if seen {
			d.logger.Info("duplicate delivery ignored", "delivery", rec.Delivery, "kind", rec.Kind)
			res.Duplicate = true
			return res, nil
		}
	}

	d.collector.Record(string(rec.Kind))

	if rec.Kind == event.KindPing {
		d.logger.Info("webhook ping acknowledged", "delivery", rec.Delivery)
		res.Ping = true
		return res, nil
	}

	if d.FilterBots && rec.Bot {
		d.logger.Debug("bot event filtered", "kind", rec.Kind, "actor", rec.Actor)
		res.Filtered = true
		return res, nil
	}

	targets := d.table.Targets(rec.Kind)
	if len(targets) == 0 {
		d.logger.Debug("no subscribers", "kind", rec.Kind)
		return res, nil
	}

	// Enqueue to every group before waiting on any of them, so one full or
	// slow queue cannot delay the others' enqueue.
	pending := make(map[string]<-chan error, len(targets))
	for _, group := range targets {
		pending[group] = d.pool.Enqueue(ctx, group, rec.Summary)
	}
	for _, group := range targets {
		if err := <-pending[group]; err != nil {
			if res.Failed == nil {
				res.Failed = make(map[string]string)
			}
			res.Failed[group] = err.Error()
			continue
		}
		res.Delivered = append(res.Delivered, group)
	}

	d.logger.Info("event dispatched",
		"kind", rec.Kind,
		"repo", rec.Repo,
		"delivered", len(res.Delivered),
		"failed", len(res.Failed),
	)
	return res, nil
}
