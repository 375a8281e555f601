package ratelimit

import "testing"

func TestAllowPermitsUpToBurst(t *testing.T) {
	l := New(3, 1)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should have been allowed within burst", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("request beyond burst capacity should have been denied")
	}
}

func TestAllowTracksAddressesIndependently(t *testing.T) {
	l := New(1, 1)
	if !l.Allow("10.0.0.1") {
		t.Fatal("first request from 10.0.0.1 should be allowed")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("first request from a different address should be allowed regardless of 10.0.0.1's bucket")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("second request from 10.0.0.1 should be denied")
	}
}
