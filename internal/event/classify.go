package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Header names GitHub sets on webhook deliveries.
const (
	HeaderEvent    = "X-GitHub-Event"
	HeaderDelivery = "X-GitHub-Delivery"
)

// ErrMalformedPayload marks a request body that could not be parsed as JSON.
// The ingress reports it to the caller as a 400; the event is never counted
// or delivered.
var ErrMalformedPayload = errors.New("malformed payload")

// Record is the classified form of one inbound webhook request. It lives for
// the duration of a single dispatch and is never persisted.
type Record struct {
	Kind     Kind
	RawKind  string // event header exactly as received
	Delivery string // provider's delivery ID, empty when absent
	Actor    string
	Repo     string
	Action   string
	URL      string
	Bot      bool // sender is a bot account
	Summary  string
}

// Classifier turns raw webhook requests into Records. The zero value is not
// usable; NewClassifier applies the rendering limits the bridge has always
// shipped with.
type Classifier struct {
	// MaxCommits caps how many commits a push summary lists.
	MaxCommits int
	// TruncateComment caps comment bodies quoted in summaries, in runes.
	TruncateComment int
}

// NewClassifier returns a Classifier with default rendering limits.
func NewClassifier() *Classifier {
	return &Classifier{MaxCommits: 5, TruncateComment: 100}
}

// Classify determines the event kind from the provider's event header and
// renders a one-line summary from the payload. An absent or unrecognized
// header classifies as KindUnknown. A body that is not valid JSON returns
// ErrMalformedPayload.
func (c *Classifier) Classify(header http.Header, body []byte) (Record, error) {
	rawKind := header.Get(HeaderEvent)
	kind := kindOf(rawKind)

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	rec := Record{
		Kind:     kind,
		RawKind:  rawKind,
		Delivery: header.Get(HeaderDelivery),
		Actor:    p.actor(),
		Repo:     p.repo(),
		Action:   p.Action,
		URL:      p.url(kind),
		Bot:      p.fromBot(),
	}
	rec.Summary = c.render(kind, rawKind, &p)
	return rec, nil
}
