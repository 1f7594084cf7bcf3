package bstore

import (
	"errors"
	"github.com/ValentinKolb/hmdlink/lib/store"
	"reflect"
	"testing"
)

func newMemStore(t *testing.T) store.IStore {
	t.Helper()
	s, err := NewBadgerStore("")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestBasicOperations checks set, get, has and delete
func TestBasicOperations(t *testing.T) {
	s := newMemStore(t)

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := s.Set("a", []byte("1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := s.Get("a")
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("Unexpected Get result %q ok=%v err=%v", v, ok, err)
	}
	if has, err := s.Has("a"); err != nil || !has {
		t.Errorf("Expected Has to find the key, got %v %v", has, err)
	}

	if err := s.Set("a", []byte("2")); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	if v, _, _ := s.Get("a"); string(v) != "2" {
		t.Errorf("Expected overwritten value 2, got %q", v)
	}

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete("a"); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
	if has, _ := s.Has("a"); has {
		t.Error("Key still present after delete")
	}
}

// TestKeys checks prefix listing and the database info
func TestKeys(t *testing.T) {
	s := newMemStore(t)

	for _, k := range []string{"p/2", "p/1", "q/1", "p/3"} {
		if err := s.Set(k, []byte(k)); err != nil {
			t.Fatalf("Set %s failed: %v", k, err)
		}
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"p/", []string{"p/1", "p/2", "p/3"}},
		{"q/", []string{"q/1"}},
		{"r/", nil},
		{"", []string{"p/1", "p/2", "p/3", "q/1"}},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			keys, err := s.Keys(tt.prefix)
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			if !reflect.DeepEqual(keys, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, keys)
			}
		})
	}

	info, err := s.GetDBInfo()
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	if info.Engine != "badger" || !info.InMemory || info.Keys != 4 {
		t.Errorf("Unexpected info %+v", info)
	}
}

// TestInvalidAndClosed checks the error paths
func TestInvalidAndClosed(t *testing.T) {
	s, err := NewBadgerStore("")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	if err := s.Set("", []byte("x")); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close should be a no-op: %v", err)
	}
	if _, _, err := s.Get("a"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := s.Keys(""); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

// TestPersistence checks that values survive reopening the directory
func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if err := s.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()

	v, ok, err := s.Get("k")
	if err != nil || !ok || string(v) != "v" {
		t.Errorf("Unexpected value after reopen %q ok=%v err=%v", v, ok, err)
	}
}
