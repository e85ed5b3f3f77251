package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("06:30")
	if err != nil || h != 6 || m != 30 {
		t.Errorf("ParseClock = %d:%d, %v", h, m, err)
	}
	for _, bad := range []string{"", "6", "25:00", "06:60", "noon"} {
		if _, _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q) should fail", bad)
		}
	}
}

func TestNext(t *testing.T) {
	d, err := NewDaily("06:00", time.UTC, quiet())
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		now, want time.Time
	}{
		{time.Date(2026, 1, 20, 5, 59, 0, 0, time.UTC), time.Date(2026, 1, 20, 6, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 20, 6, 0, 0, 0, time.UTC), time.Date(2026, 1, 21, 6, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 20, 23, 0, 0, 0, time.UTC), time.Date(2026, 1, 21, 6, 0, 0, 0, time.UTC)},
		{time.Date(2026, 12, 31, 7, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 6, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := d.Next(tc.now); !got.Equal(tc.want) {
			t.Errorf("Next(%v) = %v, want %v", tc.now, got, tc.want)
		}
	}
}

func TestNext_Location(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	d, _ := NewDaily("06:00", chicago, quiet())
	// 10:00 UTC is 04:00 in Chicago in January.
	got := d.Next(time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC))
	if want := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got.UTC(), want)
	}
}

func TestRun_FiresAndStops(t *testing.T) {
	d, _ := NewDaily("06:00", time.UTC, quiet())
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 20, 5, 0, 0, 0, time.UTC))
	d.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fired := make(chan time.Time, 4)
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx, func(context.Context) { fired <- clock.Now() })
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 3*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("job timer never armed: %v", err)
	}

	clock.Advance(59 * time.Minute)
	select {
	case at := <-fired:
		t.Fatalf("fired early at %v", at)
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(time.Minute + time.Second)
	select {
	case at := <-fired:
		if at.Before(time.Date(2026, 1, 20, 6, 0, 0, 0, time.UTC)) {
			t.Errorf("fired at %v, want at or after 06:00", at)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire at 06:00")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_RejectsInvalidClock(t *testing.T) {
	d := &Daily{hour: 25, minute: 0, loc: time.UTC, logger: quiet(), clock: clockwork.NewRealClock()}
	if err := d.Run(context.Background(), func(context.Context) {}); err == nil {
		t.Fatal("Run with hour 25 should fail")
	}
}
