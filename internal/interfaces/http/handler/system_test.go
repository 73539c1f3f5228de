package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	err error
}

func (f fakeChecker) Ping() error { return f.err }

func TestSystemHandler_Health(t *testing.T) {
	h := NewSystemHandler(nil)
	c, w := newTestContext(t)

	h.Health(c)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
}

func TestSystemHandler_Ready(t *testing.T) {
	t.Run("all dependencies healthy", func(t *testing.T) {
		h := NewSystemHandler(map[string]ReadinessChecker{
			"database": fakeChecker{},
			"redis":    fakeChecker{},
		})
		c, w := newTestContext(t)

		h.Ready(c)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "ready", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "ok", checks["database"])
		assert.Equal(t, "ok", checks["redis"])
	})

	t.Run("failing dependency flips status", func(t *testing.T) {
		h := NewSystemHandler(map[string]ReadinessChecker{
			"database": fakeChecker{err: errors.New("connection refused")},
		})
		c, w := newTestContext(t)

		h.Ready(c)

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "not ready", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "connection refused", checks["database"])
	})
}
