package feed

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/state"
)

// StateKey is the document key the feed settings persist under.
const StateKey = "feed"

// StatsKey is the document key the feed counters persist under.
const StatsKey = "feed_stats"

// maxSeen bounds the persisted seen list. A query window is a few hundred
// entries at most, so the bound covers many poll cycles.
const maxSeen = 500

// defaultInterval is used when neither the defaults nor the persisted
// document carry a poll interval.
const defaultInterval = 30 * time.Minute

var (
	// ErrEmptyKeyword rejects blank keywords; an empty substring would
	// match every entry.
	ErrEmptyKeyword = errors.New("keyword must not be empty")

	// ErrInvalidInterval rejects non-positive poll intervals.
	ErrInvalidInterval = errors.New("poll interval must be positive")
)

// Document is a point-in-time copy of the feed settings as persisted.
// Keywords and Groups are sorted; Seen is oldest first.
type Document struct {
	Keywords []string `yaml:"keywords"`
	Groups   []string `yaml:"groups"`
	Interval string   `yaml:"interval"`
	Seen     []string `yaml:"seen"`
}

// Defaults seed the settings when nothing has been persisted yet.
type Defaults struct {
	Keywords []string
	Groups   []string
	Interval time.Duration
}

// Settings holds the poller's mutable configuration and the seen list. One
// mutex covers every operation. Command mutations write through to the
// store before they become visible and roll back when the save fails, the
// same discipline as the subscription table.
type Settings struct {
	mu       sync.Mutex
	keywords map[string]struct{}
	groups   map[string]struct{}
	interval time.Duration
	seen     []string
	seenSet  map[string]struct{}
	store    state.Store
}

// LoadSettings restores the feed settings from the store. If nothing has
// been persisted yet the settings start from defaults without writing an
// initial document.
func LoadSettings(store state.Store, defaults Defaults) (*Settings, error) {
	s := &Settings{
		keywords: make(map[string]struct{}),
		groups:   make(map[string]struct{}),
		seenSet:  make(map[string]struct{}),
		interval: defaults.Interval,
		store:    store,
	}

	var doc Document
	err := store.Load(StateKey, &doc)
	switch {
	case errors.Is(err, state.ErrNotFound):
		doc = Document{Keywords: defaults.Keywords, Groups: defaults.Groups}
	case err != nil:
		return nil, fmt.Errorf("loading feed settings: %w", err)
	}

	for _, kw := range doc.Keywords {
		if kw = canonicalKeyword(kw); kw != "" {
			s.keywords[kw] = struct{}{}
		}
	}
	for _, g := range doc.Groups {
		s.groups[g] = struct{}{}
	}
	if doc.Interval != "" {
		d, err := time.ParseDuration(doc.Interval)
		if err != nil {
			return nil, fmt.Errorf("parsing feed interval: %w", err)
		}
		s.interval = d
	}
	for _, id := range doc.Seen {
		if _, ok := s.seenSet[id]; ok {
			continue
		}
		s.seen = append(s.seen, id)
		s.seenSet[id] = struct{}{}
	}
	s.trimSeenLocked()
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// AddKeyword registers a filter keyword. Keywords are matched
// case-insensitively, so they are stored lowercased. It reports whether the
// keyword was newly added.
func (s *Settings) AddKeyword(kw string) (bool, error) {
	kw = canonicalKeyword(kw)
	if kw == "" {
		return false, ErrEmptyKeyword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keywords[kw]; ok {
		return false, nil
	}
	s.keywords[kw] = struct{}{}
	if err := s.save(); err != nil {
		delete(s.keywords, kw)
		return false, err
	}
	return true, nil
}

// RemoveKeyword deletes a filter keyword. It reports whether the keyword
// was present before removal.
func (s *Settings) RemoveKeyword(kw string) (bool, error) {
	kw = canonicalKeyword(kw)
	if kw == "" {
		return false, ErrEmptyKeyword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keywords[kw]; !ok {
		return false, nil
	}
	delete(s.keywords, kw)
	if err := s.save(); err != nil {
		s.keywords[kw] = struct{}{}
		return false, err
	}
	return true, nil
}

// Keywords returns the filter keywords, sorted.
func (s *Settings) Keywords() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.keywords)
}

// AddGroup registers a delivery target for feed entries.
func (s *Settings) AddGroup(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[id]; ok {
		return false, nil
	}
	s.groups[id] = struct{}{}
	if err := s.save(); err != nil {
		delete(s.groups, id)
		return false, err
	}
	return true, nil
}

// RemoveGroup deregisters a delivery target.
func (s *Settings) RemoveGroup(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[id]; !ok {
		return false, nil
	}
	delete(s.groups, id)
	if err := s.save(); err != nil {
		s.groups[id] = struct{}{}
		return false, err
	}
	return true, nil
}

// Groups returns the registered groups, sorted.
func (s *Settings) Groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.groups)
}

// Interval returns the current poll interval.
func (s *Settings) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the poll interval. The poller picks the new value up
// after its current sleep.
func (s *Settings) SetInterval(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d == s.interval {
		return nil
	}
	prev := s.interval
	s.interval = d
	if err := s.save(); err != nil {
		s.interval = prev
		return err
	}
	return nil
}

// Matches reports whether the entry passes the keyword filter. An empty
// keyword set matches everything; otherwise any keyword appearing in the
// title or summary (case-insensitive) is enough.
func (s *Settings) Matches(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(e.Title + "\n" + e.Summary)
	for kw := range s.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// Unseen returns the entries whose IDs have not been recorded yet, keeping
// their order.
func (s *Settings) Unseen(entries []Entry) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := s.seenSet[e.ID]; !ok {
			fresh = append(fresh, e)
		}
	}
	return fresh
}

// SeenCount returns the number of recorded entry IDs.
func (s *Settings) SeenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// MarkSeen records the IDs, evicting the oldest beyond the bound, and
// persists the list. Unlike the command mutations the in-memory list is
// kept even when the save fails: re-delivering an entry while the process
// runs is worse than possibly re-delivering it after a restart.
func (s *Settings) MarkSeen(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := false
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.seenSet[id]; ok {
			continue
		}
		s.seen = append(s.seen, id)
		s.seenSet[id] = struct{}{}
		added = true
	}
	if !added {
		return nil
	}
	s.trimSeenLocked()
	return s.save()
}

// Snapshot returns a deep copy of the current feed settings.
func (s *Settings) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// save writes the current state through to the store. Callers hold mu.
func (s *Settings) save() error {
	if err := s.store.Save(StateKey, s.snapshotLocked()); err != nil {
		return fmt.Errorf("saving feed settings: %w", err)
	}
	return nil
}

func (s *Settings) snapshotLocked() Document {
	return Document{
		Keywords: sortedKeys(s.keywords),
		Groups:   sortedKeys(s.groups),
		Interval: s.interval.String(),
		Seen:     slices.Clone(s.seen),
	}
}

func (s *Settings) trimSeenLocked() {
	over := len(s.seen) - maxSeen
	if over <= 0 {
		return
	}
	for _, id := range s.seen[:over] {
		delete(s.seenSet, id)
	}
	s.seen = slices.Clone(s.seen[over:])
}

// canonicalKeyword lowercases and trims a keyword so matching and
// idempotency are case-insensitive.
func canonicalKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
