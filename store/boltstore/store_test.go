package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/younglifestyle/conflate4go/store"
	"github.com/younglifestyle/conflate4go/store/storetest"
)

func TestBoltStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T, path string) store.Store {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, func(t *testing.T) string {
		return filepath.Join(t.TempDir(), "conflate.db")
	})
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestRegisteredDriver(t *testing.T) {
	s, err := store.Open(Driver, filepath.Join(t.TempDir(), "conflate.db"))
	if err != nil {
		t.Fatalf("open via registry: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*Store); !ok {
		t.Fatalf("expected *boltstore.Store, got %T", s)
	}
}
