// Package ratelimit throttles booking write traffic. Reserve, cancel, and
// waitlist joins hold resource locks and hit the database; a runaway client
// retrying conflicts in a loop gets cut off here instead.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	WriteMaxPerMinute int // Max write requests per client per minute (default: 30)
	WriteMaxPerHour   int // Max write requests per client per hour (default: 300)

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		WriteMaxPerMinute: 30,
		WriteMaxPerHour:   300,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string
}

// entry tracks request counts inside a fixed window.
type entry struct {
	count   int
	firstAt time.Time
	lastAt  time.Time
}

// Limiter enforces per-client write limits over minute and hour windows.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.Mutex
	// Keyed by hash of client address
	minute map[string]*entry
	hour   map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		minute:        make(map[string]*entry),
		hour:          make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// CheckWrite reports whether a write request from the client is allowed and
// records it when it is.
func (l *Limiter) CheckWrite(client string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	key := hashKey(client)

	l.mu.Lock()
	defer l.mu.Unlock()

	if res := checkWindow(l.minute, key, now, time.Minute, l.config.WriteMaxPerMinute, "minute_limit"); !res.Allowed {
		return res
	}
	if res := checkWindow(l.hour, key, now, time.Hour, l.config.WriteMaxPerHour, "hourly_limit"); !res.Allowed {
		return res
	}

	record(l.minute, key, now, time.Minute)
	record(l.hour, key, now, time.Hour)
	return LimitResult{Allowed: true}
}

func checkWindow(entries map[string]*entry, key string, now time.Time, window time.Duration, limit int, reason string) LimitResult {
	e := entries[key]
	if e == nil || now.Sub(e.firstAt) >= window {
		return LimitResult{Allowed: true}
	}
	if e.count >= limit {
		return LimitResult{
			Allowed:    false,
			RetryAfter: window - now.Sub(e.firstAt),
			Reason:     reason,
		}
	}
	return LimitResult{Allowed: true}
}

func record(entries map[string]*entry, key string, now time.Time, window time.Duration) {
	e := entries[key]
	if e == nil || now.Sub(e.firstAt) >= window {
		entries[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func hashKey(value string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(value)))
	return hex.EncodeToString(hash[:8])
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.minute {
		if now.Sub(e.lastAt) > time.Minute {
			delete(l.minute, k)
		}
	}
	for k, e := range l.hour {
		if now.Sub(e.lastAt) > time.Hour {
			delete(l.hour, k)
		}
	}
}

// GetClientIP extracts the client IP from a request. When trustProxy is true
// the rightmost public X-Forwarded-For address wins; otherwise the header is
// ignored entirely to prevent spoofing.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			return strings.TrimSpace(parts[len(parts)-1])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port, e.g. in tests
		return r.RemoteAddr
	}
	return ip
}

var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
