package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/actorctx"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestObserveDB_ClassifiesErrors(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	require.NoError(t, p.ObserveDB("users.get", func() error { return nil }))

	err := p.ObserveDB("users.get", func() error { return user.ErrNotFound })
	require.ErrorIs(t, err, user.ErrNotFound)

	dup := &pgconn.PgError{Code: "23505"}
	err = p.ObserveDB("users.create", func() error { return dup })
	require.Error(t, err)

	// not-found is not an error series
	assert.Equal(t, 1, testutil.CollectAndCount(p.DbErrorsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.create", "unique_violation")))
}

func TestClassifyDBErr(t *testing.T) {
	assert.Equal(t, "deadlock", classifyDBErr(&pgconn.PgError{Code: "40P01"}))
	assert.Equal(t, "pg_42P01", classifyDBErr(&pgconn.PgError{Code: "42P01"}))
	assert.Equal(t, "timeout", classifyDBErr(context.DeadlineExceeded))
	assert.Equal(t, "unknown", classifyDBErr(errors.New("boom")))
}

func TestObserveMailAndJob(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	p.ObserveMail("activation", "queued")
	p.ObserveMail("activation", "queued")
	p.ObserveJob("send_email", "done", 20*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(p.MailDeliveries.WithLabelValues("activation", "queued")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.JobResults.WithLabelValues("send_email", "done")))
}

func TestGinHandleMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := NewProm(prometheus.NewRegistry())

	r := gin.New()
	r.Use(p.GinHandleMiddleware())
	r.GET("/users/:userName", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/ada", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(p.RequestsTotal.WithLabelValues("GET", "/users/:userName", "200")))
}

func TestLogger_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	log.InfoContext(ctx, "hello")
	span.End()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), rec["span_id"])

	buf.Reset()
	log.InfoContext(actorctx.With(context.Background(), actorctx.Identity{UserID: "u-1"}), "acting")
	rec = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "u-1", rec["actor_id"])
	assert.NotContains(t, rec, "trace_id")

	buf.Reset()
	log.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.OTEL{}, "test", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
