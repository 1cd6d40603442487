package cardnum

import (
	"bytes"
	"strings"
	"testing"
)

func TestGenerateShape(t *testing.T) {
	g, err := NewGenerator("400000")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 500; i++ {
		n, err := g.Generate()
		if err != nil {
			t.Fatal(err)
		}
		if len(n) != NumberLength {
			t.Fatalf("len=%d want=%d (%s)", len(n), NumberLength, n)
		}
		if !strings.HasPrefix(n, "400000") {
			t.Fatalf("missing BIN prefix: %s", n)
		}
		if !Valid(n) {
			t.Fatalf("generated number fails Luhn check: %s", n)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	g, err := NewGenerator("400000")
	if err != nil {
		t.Fatal(err)
	}
	// Nine zero bytes map to nine zero digits.
	g.WithRand(bytes.NewReader(make([]byte, 9)))
	n, err := g.Generate()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(n, "400000000000000") {
		t.Fatalf("unexpected digits: %s", n)
	}
	if !Valid(n) {
		t.Fatalf("check digit wrong: %s", n)
	}
}

func TestGenerateRandExhausted(t *testing.T) {
	g, _ := NewGenerator("400000")
	g.WithRand(bytes.NewReader([]byte{1, 2}))
	if _, err := g.Generate(); err == nil {
		t.Fatal("want error when the random source runs dry")
	}
}

func TestNewGeneratorRejectsBadBIN(t *testing.T) {
	for _, bin := range []string{"", "4000", "40000a", "4000000"} {
		if _, err := NewGenerator(bin); err == nil {
			t.Fatalf("BIN %q accepted", bin)
		}
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		number string
		want   bool
	}{
		{"4539578763621486", true},
		{"4556737586899855", true},
		{"4539578763621487", false},
		{"4556737586899856", false},
		{"453957876362148a", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.number); got != tc.want {
			t.Errorf("Valid(%q)=%v want=%v", tc.number, got, tc.want)
		}
	}
}
