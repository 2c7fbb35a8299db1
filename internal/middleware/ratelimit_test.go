package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterKeysByRemoteAddr(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	rl := NewRateLimiter(1, 2, log)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("1.2.3.4:1111"))
	assert.Equal(t, http.StatusOK, send("1.2.3.4:2222"))
	// The burst is spent for this address, regardless of source port.
	assert.Equal(t, http.StatusTooManyRequests, send("1.2.3.4:3333"))

	// Other clients keep their own bucket.
	assert.Equal(t, http.StatusOK, send("5.6.7.8:1111"))
}
