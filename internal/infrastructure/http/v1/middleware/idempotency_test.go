package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"millstock/internal/core/apperror"
	"millstock/internal/infrastructure/idempotency"
	"millstock/pkg/logger"
)

func newIdempotentEngine(store idempotency.Store, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Trace(), Logger(logger.NewNop()), ErrorHandler(), Recovery(), Operator(), Idempotency(store))
	r.POST("/pay", h)
	return r
}

func keyedPost(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/pay", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	return req
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	calls := 0
	r := newIdempotentEngine(idempotency.NewMemoryStore(time.Hour), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})

	w1, body1 := do(t, r, keyedPost("k-1", `{"amount":"10"}`))
	w2, body2 := do(t, r, keyedPost("k-1", `{"amount":"10"}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, w1.Code)
	assert.Equal(t, http.StatusCreated, w2.Code)
	assert.Equal(t, body1, body2)
	assert.Equal(t, "true", w2.Header().Get(HeaderIdempotentReplay))
	assert.Empty(t, w1.Header().Get(HeaderIdempotentReplay))
}

func TestIdempotency_RejectsReusedKey(t *testing.T) {
	r := newIdempotentEngine(idempotency.NewMemoryStore(time.Hour), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	do(t, r, keyedPost("k-1", `{"amount":"10"}`))
	w, body := do(t, r, keyedPost("k-1", `{"amount":"99"}`))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeIdempotencyMismatch, body["code"])
}

func TestIdempotency_FailuresAreNotStored(t *testing.T) {
	calls := 0
	r := newIdempotentEngine(idempotency.NewMemoryStore(time.Hour), func(c *gin.Context) {
		calls++
		if calls == 1 {
			_ = c.Error(apperror.NewInsufficientStock("b", "10", "2"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"call": calls})
	})

	w, _ := do(t, r, keyedPost("k-1", `{}`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, body := do(t, r, keyedPost("k-1", `{}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["call"])
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	calls := 0
	r := newIdempotentEngine(idempotency.NewMemoryStore(time.Hour), func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		c.JSON(http.StatusOK, gin.H{})
	})

	w, _ := do(t, r, keyedPost("k-1", `{}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w, _ = do(t, r, keyedPost("k-1", `{}`))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdempotency_WithoutKeyRunsEveryTime(t *testing.T) {
	calls := 0
	r := newIdempotentEngine(idempotency.NewMemoryStore(time.Hour), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{})
	})

	do(t, r, keyedPost("", `{}`))
	do(t, r, keyedPost("", `{}`))
	assert.Equal(t, 2, calls)
}
