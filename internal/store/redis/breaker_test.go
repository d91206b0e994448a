package redis

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		if err := b.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v", i, err)
		}
		if b.State() != BreakerClosed {
			t.Fatalf("opened after %d failures", i+1)
		}
	}
	if err := b.Execute(fail); !errors.Is(err, errBoom) {
		t.Fatalf("third failure err = %v", err)
	}
	if b.State() != BreakerOpen {
		t.Fatal("not open after max failures")
	}

	// Open breaker rejects without invoking fn.
	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}
	if called {
		t.Error("open breaker invoked the call")
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	b.Execute(fail)
	b.Execute(fail)
	b.Execute(ok)
	b.Execute(fail)
	b.Execute(fail)
	if b.State() != BreakerClosed {
		t.Fatal("success did not reset the failure count")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.Execute(fail)
	if b.State() != BreakerOpen {
		t.Fatal("not open")
	}

	time.Sleep(20 * time.Millisecond)

	// Failed probe reopens immediately.
	if err := b.Execute(fail); !errors.Is(err, errBoom) {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != BreakerOpen {
		t.Fatal("failed probe did not reopen")
	}

	time.Sleep(20 * time.Millisecond)

	// Successful probe closes.
	if err := b.Execute(ok); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != BreakerClosed {
		t.Fatal("successful probe did not close")
	}
}

func TestBreakerStateChangeHook(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	var transitions []string
	b.OnStateChange = func(from, to BreakerState) {
		transitions = append(transitions, from.String()+">"+to.String())
	}

	b.Execute(fail)
	time.Sleep(20 * time.Millisecond)
	b.Execute(ok)

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}
