package store

import (
	"testing"
	"time"

	"github.com/k0kubun/redisd/internal/values"
)

func TestGetAbsentAndExpired(t *testing.T) {
	db := NewDatabase()
	now := time.Now()
	if _, ok := db.Get("missing", now); ok {
		t.Fatal("expected absent")
	}
	db.Insert("k", now.Add(-time.Second), values.NewString([]byte("v")), now)
	if _, ok := db.Get("k", now); ok {
		t.Fatal("expected expired key to read as absent")
	}
}

func TestInsertFailsIfPresent(t *testing.T) {
	db := NewDatabase()
	now := time.Now()
	if err := db.Insert("k", time.Time{}, values.NewString([]byte("v")), now); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert("k", time.Time{}, values.NewString([]byte("v2")), now); err != ErrKeyExists {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestFlushExpiredSweepsEagerly(t *testing.T) {
	db := NewDatabase()
	now := time.Now()
	db.Replace("soon", now.Add(10*time.Millisecond), values.NewString([]byte("v")), now)
	db.Replace("later", now.Add(time.Hour), values.NewString([]byte("v")), now)

	evicted := db.FlushExpired(now)
	if evicted != 0 {
		t.Fatalf("expected nothing evicted yet, got %d", evicted)
	}
	evicted = db.FlushExpired(now.Add(20 * time.Millisecond))
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if db.Exists("soon", now.Add(20*time.Millisecond)) {
		t.Fatal("expected 'soon' gone")
	}
	if !db.Exists("later", now.Add(20*time.Millisecond)) {
		t.Fatal("expected 'later' to remain")
	}
}

func TestLastModifiedUpdatesOnMutation(t *testing.T) {
	db := NewDatabase()
	t0 := time.Now()
	db.Replace("k", time.Time{}, values.NewString([]byte("v")), t0)
	lm, ok := db.LastModified("k", t0)
	if !ok || !lm.Equal(t0) {
		t.Fatalf("LastModified = %v, %v", lm, ok)
	}
	t1 := t0.Add(time.Second)
	db.Touch("k", t1)
	lm, _ = db.LastModified("k", t1)
	if !lm.Equal(t1) {
		t.Fatalf("LastModified after Touch = %v, want %v", lm, t1)
	}
}

func TestRandomKeyRetriesPastExpired(t *testing.T) {
	db := NewDatabase()
	now := time.Now()
	db.Insert("expired", now.Add(-time.Second), values.NewString([]byte("v")), now)
	db.Insert("alive", time.Time{}, values.NewString([]byte("v")), now)
	key, ok := db.RandomKey(now)
	if !ok || key != "alive" {
		t.Fatalf("RandomKey = %q, %v, want alive", key, ok)
	}
}

func TestMatchPattern(t *testing.T) {
	db := NewDatabase()
	now := time.Now()
	db.Insert("foo:1", time.Time{}, values.NewString(nil), now)
	db.Insert("foo:2", time.Time{}, values.NewString(nil), now)
	db.Insert("bar:1", time.Time{}, values.NewString(nil), now)
	got := db.Match("foo:*", now)
	if len(got) != 2 {
		t.Fatalf("Match returned %v", got)
	}
}
