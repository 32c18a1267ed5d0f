package storage

import (
	"testing"
)

func TestPebbleStoreRoundTrip(t *testing.T) {
	s, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Get("user:u1:asset:asset_1"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := s.Set("user:u1:asset:asset_1", []byte("42")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("user:u1:asset:asset_1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "42" {
		t.Fatalf("got %q", got)
	}
}

func TestPebbleStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "persisted" {
		t.Fatalf("got %q", got)
	}
}
