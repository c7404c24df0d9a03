package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckWrite_MinuteLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		WriteMaxPerMinute: 3,
		WriteMaxPerHour:   100,
		Clock:             clock,
	})
	defer limiter.Close()

	client := "192.168.1.1"

	for i := 0; i < 3; i++ {
		if result := limiter.CheckWrite(client); !result.Allowed {
			t.Fatalf("request %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
	}

	result := limiter.CheckWrite(client)
	if result.Allowed {
		t.Fatal("fourth request within a minute should be blocked")
	}
	if result.Reason != "minute_limit" {
		t.Errorf("expected reason 'minute_limit', got '%s'", result.Reason)
	}
	if result.RetryAfter <= 0 || result.RetryAfter > time.Minute {
		t.Errorf("expected retry-after within a minute, got %v", result.RetryAfter)
	}

	// A fresh minute window opens up again
	clock.Advance(61 * time.Second)
	if result := limiter.CheckWrite(client); !result.Allowed {
		t.Errorf("request after window reset should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckWrite_HourlyLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		WriteMaxPerMinute: 100,
		WriteMaxPerHour:   5,
		Clock:             clock,
	})
	defer limiter.Close()

	client := "192.168.1.1"

	for i := 0; i < 5; i++ {
		if result := limiter.CheckWrite(client); !result.Allowed {
			t.Fatalf("request %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
		clock.Advance(time.Minute)
	}

	result := limiter.CheckWrite(client)
	if result.Allowed {
		t.Fatal("sixth request within the hour should be blocked")
	}
	if result.Reason != "hourly_limit" {
		t.Errorf("expected reason 'hourly_limit', got '%s'", result.Reason)
	}
}

func TestCheckWrite_ClientsAreIndependent(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		WriteMaxPerMinute: 1,
		WriteMaxPerHour:   100,
		Clock:             clock,
	})
	defer limiter.Close()

	if result := limiter.CheckWrite("10.0.0.1"); !result.Allowed {
		t.Fatalf("first client should be allowed: %s", result.Reason)
	}
	if result := limiter.CheckWrite("10.0.0.1"); result.Allowed {
		t.Fatal("first client's second request should be blocked")
	}
	if result := limiter.CheckWrite("10.0.0.2"); !result.Allowed {
		t.Errorf("second client should be unaffected: %s", result.Reason)
	}
}

func TestGetClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		xff        string
		trustProxy bool
		want       string
	}{
		{"direct connection", "203.0.113.9:51234", "", false, "203.0.113.9"},
		{"untrusted proxy ignores header", "203.0.113.9:51234", "198.51.100.7", false, "203.0.113.9"},
		{"trusted proxy uses forwarded", "10.0.0.2:51234", "198.51.100.7", true, "198.51.100.7"},
		{"trusted proxy skips private hops", "10.0.0.2:51234", "198.51.100.7, 10.0.0.3", true, "198.51.100.7"},
		{"all private falls back to last", "10.0.0.2:51234", "192.168.1.4, 10.0.0.3", true, "10.0.0.3"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			r.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := GetClientIP(r, tc.trustProxy); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
