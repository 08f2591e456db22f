package middleware

import (
	"net/http"
	"sync"
	"time"

	"plotbook/pkg/logger"
)

type BrokerExtractor func(r *http.Request) string

// BrokerRateLimiter throttles per broker identity. Brokers hammering the
// hold endpoint on a hot plot get back-pressure instead of a retry storm.
type BrokerRateLimiter struct {
	mu              sync.RWMutex
	requests        map[string][]time.Time
	limit           int
	window          time.Duration
	brokerExtractor BrokerExtractor
	log             *logger.Logger
	stopCh          chan struct{}
}

func NewBrokerRateLimiter(limit int, window time.Duration, extractor BrokerExtractor, log *logger.Logger) *BrokerRateLimiter {
	limiter := &BrokerRateLimiter{
		requests:        make(map[string][]time.Time),
		limit:           limit,
		window:          window,
		brokerExtractor: extractor,
		log:             log,
		stopCh:          make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *BrokerRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for broker, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, broker)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *BrokerRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *BrokerRateLimiter) Allow(brokerID string) bool {
	if brokerID == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	validTimestamps := make([]time.Time, 0)
	for _, ts := range rl.requests[brokerID] {
		if now.Sub(ts) < rl.window {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= rl.limit {
		rl.requests[brokerID] = validTimestamps
		return false
	}

	rl.requests[brokerID] = append(validTimestamps, now)
	return true
}

func BrokerRateLimit(limiter *BrokerRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			brokerID := extractBrokerID(r, limiter.brokerExtractor)

			if brokerID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(brokerID) {
				rejectRateLimited(w, limiter.log, r, brokerID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractBrokerID(r *http.Request, extractor BrokerExtractor) string {
	if extractor == nil {
		return r.Header.Get("X-Broker-ID")
	}
	return extractor(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, brokerID string) {
	requestID := ""
	if rid := r.Context().Value(RequestIDKey); rid != nil {
		if id, ok := rid.(string); ok {
			requestID = id
		}
	}

	log.Warn("Rate limit exceeded",
		"request_id", requestID,
		"broker_id", brokerID,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

func DefaultBrokerExtractor(r *http.Request) string {
	return r.Header.Get("X-Broker-ID")
}
