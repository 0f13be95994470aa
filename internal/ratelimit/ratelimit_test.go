package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestAllow_BurstThenDeny(t *testing.T) {
	l := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("client-1") {
			t.Fatalf("Expected request %d to be allowed within burst", i+1)
		}
	}
	if l.Allow("client-1") {
		t.Error("Expected request beyond burst to be denied")
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	if !l.Allow("a") {
		t.Error("Expected first request for key a")
	}
	if !l.Allow("b") {
		t.Error("Expected first request for key b despite a being throttled")
	}
}

func TestMiddleware_Returns429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 on second request, got %d", w.Code)
	}
}
