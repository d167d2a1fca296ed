package services

import "testing"

func TestRunLimiterAllowsBurstThenDenies(t *testing.T) {
	limiter := NewRunLimiter(2)

	if !limiter.Allow("u1") {
		t.Fatal("first trigger should be allowed")
	}
	if !limiter.Allow("u1") {
		t.Fatal("second trigger within the burst should be allowed")
	}
	if limiter.Allow("u1") {
		t.Error("third immediate trigger should be rate limited")
	}
}

func TestRunLimiterIsPerUser(t *testing.T) {
	limiter := NewRunLimiter(1)

	if !limiter.Allow("u1") {
		t.Fatal("u1's first trigger should be allowed")
	}
	if limiter.Allow("u1") {
		t.Error("u1's second immediate trigger should be rate limited")
	}
	if !limiter.Allow("u2") {
		t.Error("u2 must not be affected by u1's usage")
	}
}

func TestRunLimiterDefaultsWhenUnconfigured(t *testing.T) {
	limiter := NewRunLimiter(0)
	if !limiter.Allow("u1") {
		t.Error("expected the default limit to allow the first trigger")
	}
}
