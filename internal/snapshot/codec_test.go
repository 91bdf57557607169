package snapshot

import (
	"bytes"
	"testing"
	"time"

	"github.com/k0kubun/redisd/internal/store"
	"github.com/k0kubun/redisd/internal/values"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	now := time.Now()
	st := store.NewStore(3)
	st.DB(0).Replace("str", time.Time{}, values.NewString([]byte("hello")), now)
	st.DB(0).Replace("exp", now.Add(time.Hour), values.NewString([]byte("bye")), now)

	l := values.NewList()
	l.RPush("a")
	l.RPush("b")
	st.DB(1).Replace("list", time.Time{}, l, now)

	set := values.NewSet()
	set.Add("x")
	set.Add("y")
	st.DB(1).Replace("set", time.Time{}, set, now)

	z := values.NewZSet()
	z.Add("m1", 1.5)
	z.Add("m2", 2.5)
	st.DB(2).Replace("zset", time.Time{}, z, now)

	h := values.NewHash()
	h.Set("f1", "v1")
	st.DB(2).Replace("hash", time.Time{}, h, now)

	var buf bytes.Buffer
	if err := Save(&buf, st, now); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := store.NewStore(3)
	if err := Load(&buf, loaded, now); err != nil {
		t.Fatalf("Load: %v", err)
	}

	v, ok := loaded.DB(0).Get("str", now)
	if !ok {
		t.Fatal("str missing after load")
	}
	s, err := values.AsString(v)
	if err != nil || string(s.Data) != "hello" {
		t.Fatalf("str = %v, %v", s, err)
	}

	if _, ok := loaded.DB(0).Get("exp", now.Add(2*time.Hour)); ok {
		t.Fatal("expired key should not survive past its expiry")
	}

	v, ok = loaded.DB(1).Get("list", now)
	if !ok {
		t.Fatal("list missing after load")
	}
	ll, err := values.AsList(v)
	if err != nil || len(ll.All()) != 2 || ll.All()[0] != "a" {
		t.Fatalf("list = %v, %v", ll, err)
	}

	v, ok = loaded.DB(2).Get("zset", now)
	if !ok {
		t.Fatal("zset missing after load")
	}
	zz, err := values.AsZSet(v)
	if err != nil || len(zz.All()) != 2 {
		t.Fatalf("zset = %v, %v", zz, err)
	}
}

func TestLoadRejectsCorruptCRC(t *testing.T) {
	now := time.Now()
	st := store.NewStore(1)
	st.DB(0).Replace("k", time.Time{}, values.NewString([]byte("v")), now)

	var buf bytes.Buffer
	if err := Save(&buf, st, now); err != nil {
		t.Fatalf("Save: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	if err := Load(bytes.NewReader(corrupted), store.NewStore(1), now); err == nil {
		t.Fatal("expected crc mismatch error")
	}
}

func TestLoadRejectsBadHeader(t *testing.T) {
	if err := Load(bytes.NewReader([]byte("NOTREDIS1234")), store.NewStore(1), time.Now()); err == nil {
		t.Fatal("expected header error")
	}
}

func TestDumpRestoreRoundTrip(t *testing.T) {
	l := values.NewList()
	l.RPush("a")
	l.RPush("b")
	l.RPush("c")

	payload, err := Dump(l)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	restored, err := Restore(payload)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	ll, err := values.AsList(restored)
	if err != nil || len(ll.All()) != 3 {
		t.Fatalf("restored list = %v, %v", ll, err)
	}
}

func TestRestoreRejectsCorruptPayload(t *testing.T) {
	payload, err := Dump(values.NewString([]byte("v")))
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	payload[0] ^= 0xFF
	if _, err := Restore(payload); err == nil {
		t.Fatal("expected crc mismatch error")
	}
}
