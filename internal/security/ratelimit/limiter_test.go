package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBudget(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("request over budget should be denied")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()

	if !l.Allow("10.0.0.1") {
		t.Fatalf("first key should be allowed")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatalf("second key has its own budget")
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("first key is exhausted")
	}
}

func TestWindowSlides(t *testing.T) {
	l := NewLimiter(1, 20*time.Millisecond)
	defer l.Stop()

	if !l.Allow("10.0.0.1") {
		t.Fatalf("first request should be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("second request inside window should be denied")
	}

	time.Sleep(30 * time.Millisecond)

	if !l.Allow("10.0.0.1") {
		t.Fatalf("request after window should be allowed")
	}
}

func TestEmptyKeyBypasses(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()

	for i := 0; i < 5; i++ {
		if !l.Allow("") {
			t.Fatalf("empty key must not be limited")
		}
	}
}

func TestStrictBudgetIsSeparate(t *testing.T) {
	l := NewLimiter(100, time.Minute)
	defer l.Stop()

	// The strict keyspace has its own, tighter budget.
	if !l.AllowStrict("10.0.0.1", 1, time.Minute) {
		t.Fatalf("first strict request should be allowed")
	}
	if l.AllowStrict("10.0.0.1", 1, time.Minute) {
		t.Fatalf("strict budget exhausted")
	}

	// The default budget for the same key is untouched.
	if !l.Allow("10.0.0.1") {
		t.Fatalf("default budget must be unaffected by strict usage")
	}
}
