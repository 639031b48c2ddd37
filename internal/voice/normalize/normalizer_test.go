package normalize_test

import (
	"reflect"
	"testing"

	"github.com/voicemate/voicemate/internal/voice/normalize"
)

func TestNormalize_Coordinates(t *testing.T) {
	t.Parallel()

	n := normalize.New()
	cases := []struct {
		raw  string
		want []string
	}{
		{"e four", []string{"e", "4"}},
		{"E Four!", []string{"e", "4"}},
		{"see five", []string{"c", "5"}},
		{"bee seven", []string{"b", "7"}},
		{"delta one", []string{"d", "1"}},
		{"aitch ate", []string{"h", "8"}},
	}
	for _, tc := range cases {
		if got := n.Normalize(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Normalize(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestNormalize_CompoundBeforeWordRules(t *testing.T) {
	t.Parallel()

	n := normalize.New()

	// "before" must expand as a whole; a per-word rule could only ever see
	// "four" inside it.
	got := n.Normalize("knight before")
	want := []string{"knight", "b", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(%q) = %v, want %v", "knight before", got, want)
	}

	// Word-boundary check: "beforehand" must not expand.
	got = n.Normalize("beforehand")
	if len(got) != 1 || got[0] == "b" {
		t.Errorf("Normalize(%q) = %v, want single opaque token", "beforehand", got)
	}
}

func TestNormalize_ConnectorContext(t *testing.T) {
	t.Parallel()

	n := normalize.New()

	// "for" directly after a file letter is the rank digit.
	got := n.Normalize("bishop c for")
	want := []string{"bishop", "c", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(%q) = %v, want %v", "bishop c for", got, want)
	}

	// "to" between piece and square is a connector, but after the file
	// letter it is the rank.
	got = n.Normalize("knight to f three")
	want = []string{"knight", "to", "f", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(%q) = %v, want %v", "knight to f three", got, want)
	}

	got = n.Normalize("rook a to")
	want = []string{"rook", "a", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(%q) = %v, want %v", "rook a to", got, want)
	}
}

func TestNormalize_PieceHomophones(t *testing.T) {
	t.Parallel()

	n := normalize.New()
	cases := []struct {
		raw  string
		want []string
	}{
		{"night to f three", []string{"knight", "to", "f", "3"}},
		{"rock d one", []string{"rook", "d", "1"}},
		{"prawn takes e five", []string{"pawn", "takes", "e", "5"}},
	}
	for _, tc := range cases {
		if got := n.Normalize(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Normalize(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	n := normalize.New()
	inputs := []string{
		"night to f three",
		"rook d one",
		"see for",
		"what's on e four",
		"totally unrecognized gibberish",
	}
	for _, raw := range inputs {
		once := n.Normalize(raw)
		twice := n.Normalize(normalize.Text(once))
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Normalize not idempotent for %q: first %v, second %v", raw, once, twice)
		}
	}
}

func TestNormalize_UnknownWordsPassThrough(t *testing.T) {
	t.Parallel()

	n := normalize.New(normalize.WithoutPhoneticFallback())
	got := n.Normalize("xylophone e four")
	want := []string{"xylophone", "e", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize = %v, want %v", got, want)
	}
}

func TestNormalize_PhoneticFallback(t *testing.T) {
	t.Parallel()

	n := normalize.New()

	// "knite" is not in the table but is phonetically "nite" → knight.
	got := n.Normalize("knite f three")
	want := []string{"knight", "f", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(%q) = %v, want %v", "knite f three", got, want)
	}
}

func TestNormalize_Empty(t *testing.T) {
	t.Parallel()

	n := normalize.New()
	if got := n.Normalize(""); got != nil {
		t.Errorf("Normalize(\"\") = %v, want nil", got)
	}
	if got := n.Normalize("  ... "); got != nil {
		t.Errorf("Normalize(punctuation) = %v, want nil", got)
	}
}
