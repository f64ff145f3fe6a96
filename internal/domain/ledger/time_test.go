package ledger

import (
	"testing"
	"time"
)

func TestRippleTime_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC)
	rt := ToRippleTime(ts)
	if want := uint32(ts.Unix() - 946684800); rt != want {
		t.Fatalf("ToRippleTime = %d, want %d", rt, want)
	}
	if got := FromRippleTime(rt); !got.Equal(ts) {
		t.Fatalf("FromRippleTime = %s, want %s", got, ts)
	}
	if got := FromRippleTime(0); !got.Equal(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ripple epoch zero = %s", got)
	}
}

func TestMaturityFor_FixedOffset(t *testing.T) {
	sgt, err := ParseOffset("+08:00")
	if err != nil {
		t.Fatal(err)
	}
	due := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	got := MaturityFor(due, sgt)
	want := time.Date(2026, 1, 14, 16, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("MaturityFor = %s, want %s", got, want)
	}

	// a due date carrying a western offset keeps its UTC calendar day
	nyDue := time.Date(2026, 1, 14, 20, 0, 0, 0, time.FixedZone("EST", -5*3600))
	if got := MaturityFor(nyDue, time.UTC); !got.Equal(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("MaturityFor(nyDue) = %s", got)
	}
}

func TestParseOffset(t *testing.T) {
	for in, want := range map[string]int{"": 0, "Z": 0, "+08:00": 8 * 3600, "-05:30": -(5*3600 + 1800)} {
		loc, err := ParseOffset(in)
		if err != nil {
			t.Fatalf("ParseOffset(%q): %v", in, err)
		}
		_, off := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
		if off != want {
			t.Fatalf("ParseOffset(%q) offset = %d, want %d", in, off, want)
		}
	}
	if _, err := ParseOffset("8h"); err == nil {
		t.Fatal("expected error for malformed offset")
	}
}

func TestLock_Matured(t *testing.T) {
	T := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	l := Lock{MaturesAt: T}
	if l.Matured(T.Add(-time.Second)) {
		t.Fatal("not matured before T")
	}
	if !l.Matured(T) || !l.Matured(T.Add(time.Second)) {
		t.Fatal("matured at and after T")
	}
}
