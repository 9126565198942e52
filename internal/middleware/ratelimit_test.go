package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, limit int) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	config := RateLimitConfig{
		RequestsPerWindow: limit,
		Window:            time.Minute,
		KeyPrefix:         "test_webhook_limit",
	}
	return RateLimitMiddleware(redisClient, config, zap.NewNop())(okHandler()), mr
}

func hit(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/printify", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// Property: rate limiting blocks excessive requests
func TestProperty_RateLimitingBlocksExcessiveRequests(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests over the limit get 429", prop.ForAll(
		func(limit int, excess int) bool {
			handler, _ := newTestLimiter(t, limit)

			allowed, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				switch hit(handler, "192.168.1.100:5000").Code {
				case http.StatusOK:
					allowed++
				case http.StatusTooManyRequests:
					blocked++
				}
			}

			return allowed == limit && blocked == excess
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimitIgnoresSourcePort(t *testing.T) {
	handler, _ := newTestLimiter(t, 1)

	if w := hit(handler, "10.0.0.1:1111"); w.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", w.Code)
	}
	w := hit(handler, "10.0.0.1:2222")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected a new connection from the same host to be limited, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	if w := hit(handler, "10.0.0.2:1111"); w.Code != http.StatusOK {
		t.Errorf("expected another host to have its own budget, got %d", w.Code)
	}
}

func TestRateLimitHeadersAreSet(t *testing.T) {
	handler, _ := newTestLimiter(t, 5)

	w := hit(handler, "10.0.0.1:1111")
	if w.Header().Get("X-RateLimit-Limit") != "5" || w.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Errorf("unexpected headers %v", w.Header())
	}
}

func TestRateLimitFailsOpenWhenRedisIsDown(t *testing.T) {
	handler, mr := newTestLimiter(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		if w := hit(handler, "10.0.0.1:1111"); w.Code != http.StatusOK {
			t.Fatalf("expected requests to pass while redis is down, got %d", w.Code)
		}
	}
}
