package values

import "testing"

func TestStringAppend(t *testing.T) {
	s := NewString([]byte("bar"))
	if n := s.Append([]byte("baz")); n != 6 {
		t.Fatalf("Append returned %d, want 6", n)
	}
	if string(s.Data) != "barbaz" {
		t.Fatalf("Data = %q", s.Data)
	}
}

func TestStringSetRangePadsWithZeroes(t *testing.T) {
	s := NewString([]byte("hi"))
	n, err := s.SetRange(5, []byte("there"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Fatalf("new length = %d, want 10", n)
	}
	want := "hi\x00\x00\x00there"
	if string(s.Data) != want {
		t.Fatalf("Data = %q, want %q", s.Data, want)
	}
}

func TestStringSetRangeNegativeOffset(t *testing.T) {
	s := NewString([]byte("hi"))
	if _, err := s.SetRange(-1, []byte("x")); err == nil {
		t.Fatal("expected error for negative offset")
	}
}

func TestStringGetRange(t *testing.T) {
	s := NewString([]byte("barbaz"))
	tests := []struct {
		start, end int
		want       string
	}{
		{0, -1, "barbaz"},
		{0, 2, "bar"},
		{-3, -1, "baz"},
		{10, 20, ""},
	}
	for _, tt := range tests {
		got := string(s.GetRange(tt.start, tt.end))
		if got != tt.want {
			t.Errorf("GetRange(%d,%d) = %q, want %q", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestStringIncrBy(t *testing.T) {
	s := NewString([]byte("10"))
	v, err := s.IncrBy(5)
	if err != nil || v != 15 {
		t.Fatalf("IncrBy = %d, %v", v, err)
	}
	if string(s.Data) != "15" {
		t.Fatalf("Data = %q", s.Data)
	}
}

func TestStringIncrByNonInteger(t *testing.T) {
	s := NewString([]byte("notanumber"))
	if _, err := s.IncrBy(1); err == nil {
		t.Fatal("expected error")
	}
}

func TestStringIncrByOverflow(t *testing.T) {
	s := NewString([]byte("9223372036854775807"))
	if _, err := s.IncrBy(1); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestStringIncrByFloat(t *testing.T) {
	s := NewString([]byte("10.5"))
	v, err := s.IncrByFloat(0.1)
	if err != nil {
		t.Fatal(err)
	}
	if v != 10.6 {
		t.Fatalf("IncrByFloat = %v, want 10.6", v)
	}
}
