package checksum

import (
	"testing"

	"pgregory.net/rapid"
)

func TestSum_KnownVector(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum(abc) = %q, want %q", got, want)
	}
}

func TestString_MatchesSum(t *testing.T) {
	s := "---\ntype: assignment\n---\n\n# Héllo\n"
	if String(s) != Sum([]byte(s)) {
		t.Error("String and Sum disagree on identical bytes")
	}
}

func TestString_WhitespaceSignificant(t *testing.T) {
	if String("a\n") == String("a\r\n") {
		t.Error("line endings must change the fingerprint")
	}
	if String("a") == String("a ") {
		t.Error("trailing space must change the fingerprint")
	}
}

func TestString_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "text")
		first := String(s)
		if second := String(s); first != second {
			t.Fatalf("hash not stable: %q vs %q", first, second)
		}
		if len(first) != 64 {
			t.Fatalf("hash length = %d, want 64", len(first))
		}
	})
}
