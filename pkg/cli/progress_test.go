package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestProgressBar(t *testing.T) {
	buf := &bytes.Buffer{}
	bar := NewProgressBar(buf, "scenes")
	bar.now = fakeClock(time.Second)

	bar.Start(4)
	bar.Update(2)
	bar.Update(4)
	bar.Finish()

	out := buf.String()
	for _, want := range []string{"scenes 0/4", "scenes 2/4", "50%", "scenes 4/4", "100%", "eta"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q lacks %q", out, want)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Finish() must end the line")
	}
}

func TestProgressBar_Throttles(t *testing.T) {
	buf := &bytes.Buffer{}
	bar := NewProgressBar(buf, "scenes")
	bar.now = fakeClock(time.Millisecond)

	bar.Start(100)
	for i := int64(1); i < 50; i++ {
		bar.Update(i)
	}
	if n := strings.Count(buf.String(), "\r"); n != 1 {
		t.Errorf("redraws = %d, want only the initial one", n)
	}

	bar.Update(100)
	if !strings.Contains(buf.String(), "100/100") {
		t.Error("the final count must always be drawn")
	}
}

func TestProgressBar_IgnoresRegression(t *testing.T) {
	bar := NewProgressBar(&bytes.Buffer{}, "scenes")

	bar.Start(10)
	bar.Update(5)
	bar.Update(3)

	if bar.done != 5 {
		t.Errorf("done = %d, want 5", bar.done)
	}
}

func TestProgressBar_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	bar := NewProgressBar(buf, "scenes")

	bar.Start(0)
	bar.Update(1)
	bar.Finish()

	if buf.Len() != 0 {
		t.Errorf("empty batch drew %q", buf.String())
	}
}
