package state

import (
	"errors"
	"testing"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()

	in := document{Groups: []string{"123"}, Total: 4}
	if err := s.Save("subscriptions", in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out document
	if err := s.Load("subscriptions", &out); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Total != 4 || len(out.Groups) != 1 {
		t.Errorf("Load = %+v, want %+v", out, in)
	}
}

func TestMemoryStore_LoadMissingKey(t *testing.T) {
	var out document
	if err := NewMemoryStore().Load("nothing", &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_InvalidKey(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Save("Not Valid", document{}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Save error = %v, want ErrInvalidKey", err)
	}
}

func TestMemoryStore_SaveTakesSnapshot(t *testing.T) {
	s := NewMemoryStore()

	in := document{Groups: []string{"123"}}
	if err := s.Save("subscriptions", in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	in.Groups[0] = "mutated"

	var out document
	if err := s.Load("subscriptions", &out); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Groups[0] != "123" {
		t.Errorf("Groups[0] = %q, want the value at save time", out.Groups[0])
	}
}
