package store_test

import (
	"errors"
	"github.com/ValentinKolb/hmdlink/lib/store"
	"github.com/ValentinKolb/hmdlink/lib/store/bstore"
	"math"
	"reflect"
	"testing"
)

func newProfile(t *testing.T) *store.Profile {
	t.Helper()
	s, err := bstore.NewBadgerStore("")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return store.NewProfile(s)
}

// TestProfileValues stores and loads each value type
func TestProfileValues(t *testing.T) {
	p := newProfile(t)

	tests := []struct {
		name  string
		set   func() error
		check func(t *testing.T)
	}{
		{
			name: "string",
			set:  func() error { return p.SetString(0, "s", "hello") },
			check: func(t *testing.T) {
				if v, err := p.GetString(0, "s"); err != nil || v != "hello" {
					t.Errorf("Got %q, %v", v, err)
				}
			},
		},
		{
			name: "bool",
			set:  func() error { return p.SetBool(0, "b", true) },
			check: func(t *testing.T) {
				if v, err := p.GetBool(0, "b"); err != nil || !v {
					t.Errorf("Got %v, %v", v, err)
				}
			},
		},
		{
			name: "int",
			set:  func() error { return p.SetInt(0, "i", math.MinInt32) },
			check: func(t *testing.T) {
				if v, err := p.GetInt(0, "i"); err != nil || v != math.MinInt32 {
					t.Errorf("Got %v, %v", v, err)
				}
			},
		},
		{
			name: "number",
			set:  func() error { return p.SetNumber(0, "n", 0.064) },
			check: func(t *testing.T) {
				if v, err := p.GetNumber(0, "n"); err != nil || v != 0.064 {
					t.Errorf("Got %v, %v", v, err)
				}
			},
		},
		{
			name: "numbers",
			set:  func() error { return p.SetNumbers(0, "ns", []float64{1, -2, 3.5}) },
			check: func(t *testing.T) {
				v, err := p.GetNumbers(0, "ns")
				if err != nil || !reflect.DeepEqual(v, []float64{1, -2, 3.5}) {
					t.Errorf("Got %v, %v", v, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.set(); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			tt.check(t)
		})
	}
}

// TestProfileErrors checks missing values, type mismatches and per HMD isolation
func TestProfileErrors(t *testing.T) {
	p := newProfile(t)

	if _, err := p.GetInt(0, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := p.SetInt(0, "", 1); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}

	if err := p.SetString(1, "k", "x"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := p.GetInt(1, "k"); !errors.Is(err, store.ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch, got %v", err)
	}
	if _, err := p.GetString(2, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Values of another HMD must not be visible, got %v", err)
	}

	v, typ, err := p.Describe(1, "k")
	if err != nil || v != "x" || typ != "string" {
		t.Errorf("Unexpected description %q %q %v", v, typ, err)
	}

	if err := p.Delete(1, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := p.GetString(1, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

// TestProfileKey checks that keys round trip through the store key format
func TestProfileKey(t *testing.T) {
	tests := []struct {
		hmd int32
		key string
	}{
		{0, "CenterPupilDepth"},
		{-1, "server:CameraSerial"},
		{7, "a/b"},
	}
	for _, tt := range tests {
		hmd, key, ok := store.ParseProfileKey(store.ProfileKey(tt.hmd, tt.key))
		if !ok || hmd != tt.hmd || key != tt.key {
			t.Errorf("Round trip of (%d, %q) gave (%d, %q, %v)", tt.hmd, tt.key, hmd, key, ok)
		}
	}
	if _, _, ok := store.ParseProfileKey("other/1/x"); ok {
		t.Error("Foreign key must not parse")
	}
}
