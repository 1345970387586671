package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/pantheon/internal/store"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	if _, err := s.Get("abc123"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get on empty store: got %v, want ErrNotFound", err)
	}

	if err := s.Put("abc123", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := s.Get("abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != `{"v":1}` {
		t.Errorf("Get: got %s", data)
	}
}

func TestFSStoreWriteOnce(t *testing.T) {
	s, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	if err := s.Put("k", []byte("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("k", []byte("second")); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	data, err := s.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("write-once violated: got %s", data)
	}
}

func TestFSStoreNoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	if err := s.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, ".put-*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFSStorePurge(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	s.Put("a", []byte(`{"model_id":"alpha/one"}`))
	s.Put("b", []byte(`{"model_id":"beta/two"}`))
	s.Put("c", []byte(`{"model_id":"alpha/one","x":2}`))

	removed, err := s.Purge("alpha/one")
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 2 {
		t.Errorf("Purge removed %d, want 2", removed)
	}
	if _, err := s.Get("b"); err != nil {
		t.Errorf("unrelated entry removed: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected 1 remaining file, got %d", len(entries))
	}
}

func TestMemStoreWriteOnce(t *testing.T) {
	s := store.NewMemStore()
	s.Put("k", []byte("first"))
	s.Put("k", []byte("second"))
	data, err := s.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("write-once violated: got %s", data)
	}
	if s.Len() != 1 {
		t.Errorf("Len: got %d, want 1", s.Len())
	}
}
