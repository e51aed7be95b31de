package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_LevelAndServiceField(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("rating-service", "warn", &buf)

	Info().Msg("skipped")
	Warn().Str("key", "value").Msg("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "rating-service", entry["service"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "kept", entry["message"])
}

func TestInitWithWriter_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("rating-service", "verbose", &buf)

	Debug().Msg("skipped")
	Info().Msg("kept")

	assert.NotContains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), "kept")
}

func TestGinLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		requestID string
		status    int
		level     string
	}{
		{"ok request generates id", "", http.StatusOK, "info"},
		{"client error keeps id", "req-123", http.StatusNotFound, "warn"},
		{"server error", "", http.StatusBadGateway, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var buf bytes.Buffer
			InitWithWriter("rating-service", "debug", &buf)

			router := gin.New()
			router.Use(GinLoggerMiddleware())
			router.GET("/ratings/sessions/:id", func(c *gin.Context) {
				c.Set("user_id", int64(7))
				c.Status(tt.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/ratings/sessions/abc?x=1", nil)
			if tt.requestID != "" {
				req.Header.Set(RequestIDHeader, tt.requestID)
			}
			rec := httptest.NewRecorder()

			// Act
			router.ServeHTTP(rec, req)

			// Assert
			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "/ratings/sessions/:id", entry["route"])
			assert.Equal(t, "x=1", entry["query"])
			assert.Equal(t, float64(7), entry["user_id"])
			assert.Equal(t, float64(tt.status), entry["status"])

			gotID := rec.Header().Get(RequestIDHeader)
			assert.NotEmpty(t, gotID)
			assert.Equal(t, gotID, entry["request_id"])
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, gotID)
			}
		})
	}
}
