package storage

import (
	"testing"
)

func TestMemStoreGetMissing(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Get("absent"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemStoreSetGet(t *testing.T) {
	s := NewMemStore()
	if err := s.Set("k", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q", got)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestMemStoreCopiesValues(t *testing.T) {
	s := NewMemStore()
	buf := []byte("original")
	s.Set("k", buf)
	buf[0] = 'X'

	got, _ := s.Get("k")
	if string(got) != "original" {
		t.Fatalf("stored value aliases caller buffer: %q", got)
	}
	got[0] = 'Y'
	again, _ := s.Get("k")
	if string(again) != "original" {
		t.Fatalf("returned value aliases stored buffer: %q", again)
	}
}
