package kv

import "testing"

func TestIntRoundTrip(t *testing.T) {
	k := NewInt(-42)
	buf := k.Bytes()
	if len(buf) != 4 {
		t.Fatalf("expected 4-byte wire encoding, got %d", len(buf))
	}
	got, n, err := Decode(Int, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 4 || got.Int() != -42 {
		t.Fatalf("expected -42 consuming 4 bytes, got %d consuming %d", got.Int(), n)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	k := NewFloat(3.5)
	buf := k.Bytes()
	got, n, err := Decode(Float, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 4 || got.Float() != 3.5 {
		t.Fatalf("expected 3.5, got %v", got.Float())
	}
}

func TestVarcharRoundTrip(t *testing.T) {
	k := NewVarchar([]byte("hello"))
	buf := k.Bytes()
	if len(buf) != 4+5 {
		t.Fatalf("expected 9-byte wire encoding, got %d", len(buf))
	}
	got, n, err := Decode(Varchar, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 9 || string(got.Varchar()) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got.Varchar())
	}
}

func TestCompareOrdering(t *testing.T) {
	if NewInt(1).Compare(NewInt(2)) >= 0 {
		t.Fatalf("expected 1 < 2")
	}
	if NewFloat(2.5).Compare(NewFloat(1.5)) <= 0 {
		t.Fatalf("expected 2.5 > 1.5")
	}
	if NewVarchar([]byte("abc")).Compare(NewVarchar([]byte("abd"))) >= 0 {
		t.Fatalf("expected abc < abd lexicographically")
	}
	if !NewVarchar([]byte("same")).Equal(NewVarchar([]byte("same"))) {
		t.Fatalf("expected equal varchars to compare equal")
	}
}

func TestHashCodeIsStableAndTypeSensitive(t *testing.T) {
	a := NewVarchar([]byte("42"))
	b := NewInt(42)
	if a.HashCode() == b.HashCode() {
		t.Fatalf("expected varchar %q and int 42 to hash differently (binary, not string-based)", "42")
	}
	if NewInt(7).HashCode() != NewInt(7).HashCode() {
		t.Fatalf("expected hash code to be stable across calls")
	}
}

func TestCompareMismatchedKindsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic comparing mismatched kinds")
		}
	}()
	NewInt(1).Compare(NewVarchar([]byte("1")))
}
