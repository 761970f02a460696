package system

import (
	"testing"
	"time"
)

func TestNowIsUTC(t *testing.T) {
	c := New()
	if got := c.Now().Location(); got != time.UTC {
		t.Fatalf("expected UTC location, got %v", got)
	}
}

func TestNowAdvances(t *testing.T) {
	c := New()
	a := c.Now()
	time.Sleep(time.Millisecond)
	b := c.Now()
	if !b.After(a) {
		t.Fatalf("expected %v to be after %v", b, a)
	}
}
