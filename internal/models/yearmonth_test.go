package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestYearMonthBefore(t *testing.T) {
	cases := []struct {
		a, b YearMonth
		want bool
	}{
		{YearMonth{2030, time.May}, YearMonth{2030, time.June}, true},
		{YearMonth{2030, time.June}, YearMonth{2030, time.May}, false},
		{YearMonth{2029, time.December}, YearMonth{2030, time.January}, true},
		// A card is valid through its expiry month: equal is not before.
		{YearMonth{2030, time.May}, YearMonth{2030, time.May}, false},
	}
	for _, tc := range cases {
		if got := tc.a.Before(tc.b); got != tc.want {
			t.Errorf("%s before %s = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestYearMonthJSON(t *testing.T) {
	ym := YearMonth{Year: 2031, Month: time.August}
	data, err := json.Marshal(ym)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"2031-08"` {
		t.Fatalf("marshal=%s", data)
	}

	var back YearMonth
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != ym {
		t.Fatalf("round trip: %v", back)
	}

	for _, bad := range []string{`"2031-13"`, `"2031-00"`, `"nonsense"`} {
		if err := json.Unmarshal([]byte(bad), &back); err == nil {
			t.Errorf("%s accepted", bad)
		}
	}
}

func TestYearMonthAddYears(t *testing.T) {
	got := YearMonth{Year: 2026, Month: time.February}.AddYears(5)
	if got != (YearMonth{Year: 2031, Month: time.February}) {
		t.Fatalf("got %s", got)
	}
}
