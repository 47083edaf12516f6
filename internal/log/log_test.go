package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faturamento/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestJSONLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentWorker, Output: &buf})

	logger.WithComponent(ComponentSummary).Info("refreshed", FieldPeriod, "2025-03")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "refreshed", line["msg"])
	assert.Equal(t, ComponentSummary, line[FieldComponent])
	assert.Equal(t, "2025-03", line[FieldPeriod])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf})
	logger.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestMiddlewareStoresRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	requestID := func(context.Context) string { return "req-1" }

	h := Middleware(base, requestID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/invoices", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line[FieldRequestID])
	assert.Equal(t, "/api/invoices", line[FieldPath])
	assert.Equal(t, ComponentHTTP, line[FieldComponent])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, ComponentApp, logger.Component())
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeValidation, ErrorType(core.NewValidationError("value", "must be positive")))
	assert.Equal(t, ErrorTypeNotFound, ErrorType(core.NotFoundError("invoice", 7)))
	assert.Equal(t, ErrorTypeInternal, ErrorType(errors.New("disk full")))
}

func TestLogErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}))

	LogError(ctx, "bad input", core.NewValidationError("month", "out of range"), OpRead)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, ErrorTypeValidation, line[FieldErrorType])
}
