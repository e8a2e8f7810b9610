package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the correlation id on requests and responses
const RequestIDHeader = "X-Request-Id"

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepSize     = 10000
	limiterSweepInterval = time.Minute
)

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		start := time.Now()
		next.ServeHTTP(w, r)

		s.logger.Sugar().Debugw("Handled request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(s.proxies.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// trustedProxies are the peers allowed to report the client address through
// X-Forwarded-For. Requests from any other peer are keyed by their own address.
type trustedProxies []*net.IPNet

// parseTrustedProxies accepts IP addresses and CIDR ranges
func parseTrustedProxies(entries []string) (trustedProxies, error) {
	proxies := make(trustedProxies, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			proxies = append(proxies, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", entry)
		}
		bits := 8 * net.IPv4len
		if ip.To4() == nil {
			bits = 8 * net.IPv6len
		} else {
			ip = ip.To4()
		}
		proxies = append(proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return proxies, nil
}

func (p trustedProxies) contains(ip net.IP) bool {
	for _, network := range p {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// clientKey identifies the caller. X-Forwarded-For is only honoured when the
// peer is a trusted proxy, and is walked from the right so the key is the
// nearest hop no trusted proxy vouches for.
func (p trustedProxies) clientKey(r *http.Request) string {
	key := peerHost(r.RemoteAddr)
	if len(p) == 0 {
		return key
	}
	if peer := net.ParseIP(key); peer == nil || !p.contains(peer) {
		return key
	}

	var hops []string
	for _, value := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(value, ",")...)
	}
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(hops[i]))
		if ip == nil {
			return key
		}
		if !p.contains(ip) {
			return ip.String()
		}
		key = ip.String()
	}
	return key
}

func peerHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client
type clientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*limiterEntry
	lastSweep time.Time
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*limiterEntry),
	}
}

func (c *clientLimiter) allow(key string) bool {
	if c == nil {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry, ok := c.clients[key]
	if !ok {
		if len(c.clients) >= limiterSweepSize && now.Sub(c.lastSweep) >= limiterSweepInterval {
			c.sweepLocked(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

func (c *clientLimiter) sweepLocked(now time.Time) {
	c.lastSweep = now
	for key, entry := range c.clients {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(c.clients, key)
		}
	}
}
