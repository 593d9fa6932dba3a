package subscription

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/event"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/state"
)

// failingStore wraps a real store and fails saves on demand.
type failingStore struct {
	state.Store
	failSaves bool
}

func (f *failingStore) Save(key string, v any) error {
	if f.failSaves {
		return errors.New("disk full")
	}
	return f.Store.Save(key, v)
}

// countingStore wraps a real store and counts saves.
type countingStore struct {
	state.Store
	saves int
}

func (c *countingStore) Save(key string, v any) error {
	c.saves++
	return c.Store.Save(key, v)
}

func newTable(t *testing.T) *Table {
	t.Helper()
	tab, err := Load(state.NewMemoryStore(), Subscription{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tab
}

func TestTable_AddGroupIdempotent(t *testing.T) {
	tab := newTable(t)

	added, err := tab.AddGroup("100")
	if err != nil || !added {
		t.Fatalf("AddGroup = %v, %v; want true, nil", added, err)
	}
	added, err = tab.AddGroup("100")
	if err != nil || added {
		t.Fatalf("second AddGroup = %v, %v; want false, nil", added, err)
	}
	if got := tab.Groups(); len(got) != 1 {
		t.Errorf("Groups = %v, want exactly one entry", got)
	}
}

func TestTable_RemoveGroupIdempotent(t *testing.T) {
	tab := newTable(t)
	if _, err := tab.AddGroup("100"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}

	removed, err := tab.RemoveGroup("100")
	if err != nil || !removed {
		t.Fatalf("RemoveGroup = %v, %v; want true, nil", removed, err)
	}
	removed, err = tab.RemoveGroup("100")
	if err != nil || removed {
		t.Fatalf("second RemoveGroup = %v, %v; want false, nil", removed, err)
	}
	if got := tab.Groups(); len(got) != 0 {
		t.Errorf("Groups = %v, want empty", got)
	}
}

func TestTable_GroupsSorted(t *testing.T) {
	tab := newTable(t)
	for _, id := range []string{"300", "100", "200"} {
		if _, err := tab.AddGroup(id); err != nil {
			t.Fatalf("AddGroup(%s): %v", id, err)
		}
	}
	want := []string{"100", "200", "300"}
	if got := tab.Groups(); !reflect.DeepEqual(got, want) {
		t.Errorf("Groups = %v, want %v", got, want)
	}
}

func TestTable_AddEventRejectsUnknownTag(t *testing.T) {
	tab := newTable(t)

	if _, err := tab.AddEvent("workflow_run"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("AddEvent(workflow_run) error = %v, want ErrUnknownKind", err)
	}
	if _, err := tab.RemoveEvent("workflow_run"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("RemoveEvent(workflow_run) error = %v, want ErrUnknownKind", err)
	}
	if got := tab.Events(); len(got) != 0 {
		t.Errorf("Events = %v, want empty after rejected mutations", got)
	}
}

func TestTable_UnknownTagIsEnableable(t *testing.T) {
	tab := newTable(t)

	added, err := tab.AddEvent("unknown")
	if err != nil || !added {
		t.Fatalf("AddEvent(unknown) = %v, %v; want true, nil", added, err)
	}
	if tab.IsSubscribed("100", event.KindUnknown) {
		t.Error("IsSubscribed = true before the group was added")
	}
	if _, err := tab.AddGroup("100"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if !tab.IsSubscribed("100", event.KindUnknown) {
		t.Error("IsSubscribed = false, want true once group and kind are both present")
	}
}

func TestTable_IsSubscribedNeedsBoth(t *testing.T) {
	tab := newTable(t)
	if _, err := tab.AddGroup("100"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if _, err := tab.AddEvent("push"); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	cases := []struct {
		group string
		kind  event.Kind
		want  bool
	}{
		{"100", event.KindPush, true},
		{"100", event.KindStar, false},
		{"200", event.KindPush, false},
		{"200", event.KindStar, false},
	}
	for _, c := range cases {
		if got := tab.IsSubscribed(c.group, c.kind); got != c.want {
			t.Errorf("IsSubscribed(%s, %s) = %v, want %v", c.group, c.kind, got, c.want)
		}
	}
}

func TestTable_Targets(t *testing.T) {
	tab := newTable(t)
	for _, id := range []string{"200", "100"} {
		if _, err := tab.AddGroup(id); err != nil {
			t.Fatalf("AddGroup: %v", err)
		}
	}

	if got := tab.Targets(event.KindPush); got != nil {
		t.Errorf("Targets(push) = %v, want nil while push is disabled", got)
	}

	if _, err := tab.AddEvent("push"); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	want := []string{"100", "200"}
	if got := tab.Targets(event.KindPush); !reflect.DeepEqual(got, want) {
		t.Errorf("Targets(push) = %v, want %v", got, want)
	}
}

func TestTable_PersistenceRoundTrip(t *testing.T) {
	store := state.NewMemoryStore()

	tab, err := Load(store, Subscription{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, id := range []string{"100", "200"} {
		if _, err := tab.AddGroup(id); err != nil {
			t.Fatalf("AddGroup: %v", err)
		}
	}
	for _, tag := range []string{"push", "star"} {
		if _, err := tab.AddEvent(tag); err != nil {
			t.Fatalf("AddEvent: %v", err)
		}
	}
	if _, err := tab.RemoveGroup("200"); err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}

	reloaded, err := Load(store, Subscription{})
	if err != nil {
		t.Fatalf("Load (reload): %v", err)
	}
	if got, want := reloaded.Snapshot(), tab.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded snapshot = %+v, want %+v", got, want)
	}
}

func TestTable_RollbackOnSaveFailure(t *testing.T) {
	store := &failingStore{Store: state.NewMemoryStore()}
	tab, err := Load(store, Subscription{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := tab.AddGroup("100"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if _, err := tab.AddEvent("push"); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	store.failSaves = true

	if _, err := tab.AddGroup("200"); err == nil {
		t.Fatal("AddGroup should surface the storage error")
	}
	if _, err := tab.RemoveGroup("100"); err == nil {
		t.Fatal("RemoveGroup should surface the storage error")
	}
	if _, err := tab.AddEvent("star"); err == nil {
		t.Fatal("AddEvent should surface the storage error")
	}
	if _, err := tab.RemoveEvent("push"); err == nil {
		t.Fatal("RemoveEvent should surface the storage error")
	}

	// Memory still matches the last committed state.
	snap := tab.Snapshot()
	if !reflect.DeepEqual(snap.Groups, []string{"100"}) {
		t.Errorf("Groups = %v, want [100] after rollback", snap.Groups)
	}
	if !reflect.DeepEqual(snap.Events, []string{"push"}) {
		t.Errorf("Events = %v, want [push] after rollback", snap.Events)
	}

	// And so does the durable copy.
	store.failSaves = false
	reloaded, err := Load(store, Subscription{})
	if err != nil {
		t.Fatalf("Load (reload): %v", err)
	}
	if got := reloaded.Snapshot(); !reflect.DeepEqual(got, snap) {
		t.Errorf("durable snapshot = %+v, want %+v", got, snap)
	}
}

func TestTable_NoSaveOnNoOpMutation(t *testing.T) {
	store := &countingStore{Store: state.NewMemoryStore()}
	tab, err := Load(store, Subscription{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := tab.AddGroup("100"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d, want 1", store.saves)
	}
	if _, err := tab.AddGroup("100"); err != nil {
		t.Fatalf("repeated AddGroup: %v", err)
	}
	if _, err := tab.RemoveGroup("999"); err != nil {
		t.Fatalf("RemoveGroup of absent id: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1; no-op mutations must not touch the store", store.saves)
	}
}

func TestTable_SeedsDefaultsWithoutSaving(t *testing.T) {
	store := &countingStore{Store: state.NewMemoryStore()}

	tab, err := Load(store, Subscription{Groups: []string{"42"}, Events: []string{"push", "ping"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0; seeding defaults is not a mutation", store.saves)
	}
	snap := tab.Snapshot()
	if !reflect.DeepEqual(snap.Groups, []string{"42"}) {
		t.Errorf("Groups = %v, want [42]", snap.Groups)
	}
	if !reflect.DeepEqual(snap.Events, []string{"ping", "push"}) {
		t.Errorf("Events = %v, want [ping push]", snap.Events)
	}
}

func TestTable_DropsUnrecognizedPersistedTags(t *testing.T) {
	store := state.NewMemoryStore()
	doc := Subscription{Groups: []string{"100"}, Events: []string{"push", "workflow_run"}}
	if err := store.Save(StateKey, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tab, err := Load(store, Subscription{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := tab.Events(); !reflect.DeepEqual(got, []event.Kind{event.KindPush}) {
		t.Errorf("Events = %v, want [push]", got)
	}
}

func TestTable_SnapshotIsDeepCopy(t *testing.T) {
	tab := newTable(t)
	if _, err := tab.AddGroup("100"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}

	snap := tab.Snapshot()
	snap.Groups[0] = "mutated"

	if got := tab.Groups(); got[0] != "100" {
		t.Errorf("Groups[0] = %q; snapshot mutation leaked into the table", got[0])
	}
}

func TestTable_ConcurrentMutationAndDispatchReads(t *testing.T) {
	tab := newTable(t)
	if _, err := tab.AddEvent("push"); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("%d", 100+n)
			if _, err := tab.AddGroup(id); err != nil {
				t.Errorf("AddGroup(%s): %v", id, err)
			}
		}(i)
		go func() {
			defer wg.Done()
			// Every observed target set is a committed one; the read
			// itself must never race with an in-flight mutation.
			tab.Targets(event.KindPush)
		}()
	}
	wg.Wait()

	if got := len(tab.Groups()); got != 8 {
		t.Errorf("Groups count = %d, want 8", got)
	}
}
