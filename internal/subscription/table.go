package subscription

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/event"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/state"
)

// ErrUnknownKind is returned when an operation references an event tag
// outside the fixed enumeration.
var ErrUnknownKind = errors.New("unknown event kind")

// StateKey is the document key the table persists under.
const StateKey = "subscriptions"

// Subscription is a point-in-time copy of the table's contents.
// Groups and Events are sorted.
type Subscription struct {
	Groups []string `yaml:"groups"`
	Events []string `yaml:"enabledEvents"`
}

// Table holds the target groups and the globally enabled event kinds.
// One mutex covers every operation, so a dispatch read never observes a
// half-applied mutation. Every mutation writes through to the store before
// it becomes visible; if the save fails the change is rolled back and the
// error returned, keeping memory and storage consistent.
type Table struct {
	mu     sync.Mutex
	groups map[string]struct{}
	events map[event.Kind]struct{}
	store  state.Store
}

// Load restores the table from the store. If nothing has been persisted yet
// the table starts from defaults without writing an initial document.
// Persisted event tags that are no longer in the enumeration are dropped.
func Load(store state.Store, defaults Subscription) (*Table, error) {
	t := &Table{
		groups: make(map[string]struct{}),
		events: make(map[event.Kind]struct{}),
		store:  store,
	}

	var doc Subscription
	err := store.Load(StateKey, &doc)
	switch {
	case errors.Is(err, state.ErrNotFound):
		doc = defaults
	case err != nil:
		return nil, fmt.Errorf("loading subscriptions: %w", err)
	}

	for _, g := range doc.Groups {
		t.groups[g] = struct{}{}
	}
	for _, tag := range doc.Events {
		if k, ok := event.ParseKind(tag); ok {
			t.events[k] = struct{}{}
		}
	}
	return t, nil
}

// AddGroup registers a delivery target. It reports whether the group was
// newly added; adding an existing group is a no-op and does not touch the store.
func (t *Table) AddGroup(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.groups[id]; ok {
		return false, nil
	}
	t.groups[id] = struct{}{}
	if err := t.save(); err != nil {
		delete(t.groups, id)
		return false, err
	}
	return true, nil
}

// RemoveGroup deregisters a delivery target. It reports whether the group
// was present before removal.
func (t *Table) RemoveGroup(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.groups[id]; !ok {
		return false, nil
	}
	delete(t.groups, id)
	if err := t.save(); err != nil {
		t.groups[id] = struct{}{}
		return false, err
	}
	return true, nil
}

// Groups returns the registered groups, sorted.
func (t *Table) Groups() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedGroups()
}

// AddEvent enables an event kind by tag. Tags outside the enumeration are
// rejected with ErrUnknownKind; the catch-all "unknown" tag is legal.
func (t *Table) AddEvent(tag string) (bool, error) {
	k, ok := event.ParseKind(tag)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, tag)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.events[k]; ok {
		return false, nil
	}
	t.events[k] = struct{}{}
	if err := t.save(); err != nil {
		delete(t.events, k)
		return false, err
	}
	return true, nil
}

// RemoveEvent disables an event kind by tag.
func (t *Table) RemoveEvent(tag string) (bool, error) {
	k, ok := event.ParseKind(tag)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, tag)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.events[k]; !ok {
		return false, nil
	}
	delete(t.events, k)
	if err := t.save(); err != nil {
		t.events[k] = struct{}{}
		return false, err
	}
	return true, nil
}

// Events returns the enabled event kinds, sorted by tag.
func (t *Table) Events() []event.Kind {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedEvents()
}

// IsSubscribed reports whether the group is registered and the kind enabled.
func (t *Table) IsSubscribed(group string, kind event.Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.events[kind]; !ok {
		return false
	}
	_, ok := t.groups[group]
	return ok
}

// Targets returns every group that should receive an event of the given
// kind: all registered groups when the kind is enabled, nil otherwise.
func (t *Table) Targets(kind event.Kind) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.events[kind]; !ok {
		return nil
	}
	return t.sortedGroups()
}

// Snapshot returns a deep copy of the current subscription state.
func (t *Table) Snapshot() Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// save writes the current state through to the store. Callers hold mu.
func (t *Table) save() error {
	if err := t.store.Save(StateKey, t.snapshotLocked()); err != nil {
		return fmt.Errorf("saving subscriptions: %w", err)
	}
	return nil
}

func (t *Table) snapshotLocked() Subscription {
	tags := make([]string, 0, len(t.events))
	for _, k := range t.sortedEvents() {
		tags = append(tags, string(k))
	}
	return Subscription{Groups: t.sortedGroups(), Events: tags}
}

func (t *Table) sortedGroups() []string {
	groups := make([]string, 0, len(t.groups))
	for g := range t.groups {
		groups = append(groups, g)
	}
	slices.Sort(groups)
	return groups
}

func (t *Table) sortedEvents() []event.Kind {
	kinds := make([]event.Kind, 0, len(t.events))
	for k := range t.events {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
