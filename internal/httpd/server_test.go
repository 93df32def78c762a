package httpd

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/envstream/internal/config"
	"github.com/speedwagon-io/envstream/internal/diag"
	"github.com/speedwagon-io/envstream/internal/lib/logger/sl"
	"github.com/speedwagon-io/envstream/internal/metrics"
	"github.com/speedwagon-io/envstream/internal/model"
	"github.com/speedwagon-io/envstream/internal/stream"
	"github.com/speedwagon-io/envstream/internal/telemetry"
	"github.com/speedwagon-io/envstream/internal/wire"
)

func sampleSnapshots() []model.SensorSnapshot {
	bme := model.NewSnapshot("BME280", "thp", "inside")
	bme.Push("temperature", 21.7, "°C")
	bme.Push("humidity", 40.2, "%")

	gy := model.NewSnapshot("GY30", "illuminance", "inside")
	gy.Push("illuminance", 99.9, "lx")

	return []model.SensorSnapshot{bme, gy}
}

func TestRenderHTML(t *testing.T) {
	want := "<h2>BME280</h2>\n<ul>\n<li>temperature: 21 °C</li>\n<li>humidity: 40 %</li>\n</ul>\n" +
		"<h2>GY30</h2>\n<ul>\n<li>illuminance: 99 lx</li>\n</ul>\n"
	assert.Equal(t, want, RenderHTML(sampleSnapshots()))
}

func TestRenderHTMLEmptyAndEscaped(t *testing.T) {
	assert.Empty(t, RenderHTML(nil))

	s := model.NewSnapshot("<b>x</b>", "t", "l")
	s.Push("a&b", -3.9, "")
	assert.Equal(t, "<h2>&lt;b&gt;x&lt;/b&gt;</h2>\n<ul>\n<li>a&amp;b: -3 </li>\n</ul>\n", RenderHTML([]model.SensorSnapshot{s}))
}

type staticSource []model.SensorSnapshot

func (s staticSource) Latest() []model.SensorSnapshot { return s }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSensorsAndIndex(t *testing.T) {
	srv := NewServer(sl.Discard(), config.HTTPConfig{}, staticSource(sampleSnapshots()), nil, nil)

	rec := get(t, srv.Handler(), "/sensors")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<li>illuminance: 99 lx</li>")

	rec = get(t, srv.Handler(), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fetch("/sensors")`)

	assert.Equal(t, http.StatusOK, get(t, srv.Handler(), "/live").Code)
	assert.Equal(t, http.StatusOK, get(t, srv.Handler(), "/ready").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/ws").Code)
}

func TestSensorsBeforeFirstPublication(t *testing.T) {
	ch := telemetry.NewChannel(telemetry.DefaultCapacity)
	srv := NewServer(sl.Discard(), config.HTTPConfig{}, ch, nil, nil)

	rec := get(t, srv.Handler(), "/sensors")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

type fakeTracker struct {
	last     time.Time
	interval time.Duration
}

func (f fakeTracker) LastPublish() time.Time  { return f.last }
func (f fakeTracker) Interval() time.Duration { return f.interval }

type fakeSlots struct{ used, limit int }

func (f fakeSlots) InUse() (int, int) { return f.used, f.limit }

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		tracker fakeTracker
		slots   fakeSlots
		want    Status
	}{
		{"fresh", fakeTracker{time.Now(), time.Second}, fakeSlots{0, 2}, StatusHealthy},
		{"never published", fakeTracker{time.Time{}, time.Second}, fakeSlots{0, 2}, StatusDegraded},
		{"stale", fakeTracker{time.Now().Add(-time.Minute), time.Second}, fakeSlots{0, 2}, StatusDegraded},
		{"full", fakeTracker{time.Now(), time.Second}, fakeSlots{2, 2}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(sl.Discard(), config.HTTPConfig{}, staticSource(nil), nil, nil)
			srv.AddChecker(NewSamplerHealthChecker(tt.tracker))
			srv.AddChecker(NewStreamHealthChecker(tt.slots))

			rec := get(t, srv.Handler(), "/health")
			assert.Equal(t, http.StatusOK, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Status)
			require.Len(t, resp.Components, 2)
			assert.Equal(t, "sampler", resp.Components[0].Name)
			assert.Equal(t, "stream", resp.Components[1].Name)
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.CycleSkipped()

	srv := NewServer(sl.Discard(), config.HTTPConfig{}, staticSource(nil), nil, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	rec := get(t, srv.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "envstream_sampling_cycles_skipped_total 1")
}

func TestWebSocketStreamEndToEnd(t *testing.T) {
	ch := telemetry.NewChannel(telemetry.DefaultCapacity)
	sink := diag.NewSink(sl.Discard(), diag.DefaultCapacity, nil)
	acceptor := stream.NewWebSocketAcceptor(sl.Discard(), 2, stream.DefaultFrameSize)
	streamSrv := stream.NewServer(sl.Discard(), acceptor, ch, sink, nil, stream.DefaultFrameSize)

	srv := NewServer(sl.Discard(), config.HTTPConfig{}, ch, acceptor, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- streamSrv.Run(runCtx) }()
	defer func() {
		stop()
		<-done
	}()

	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer client.CloseNow()

	require.Eventually(t, sink.Active, 2*time.Second, time.Millisecond)
	sink.Record(model.DiagnosticEntry{Level: "WARN", Source: "sampler", Message: "illuminance is too low"})
	require.NoError(t, ch.Publish(ctx, sampleSnapshots()))

	typ, data, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, typ)

	msg, err := wire.Decode(data)
	require.NoError(t, err)
	require.Len(t, msg.Snapshots, 2)
	assert.Equal(t, "BME280", msg.Snapshots[0].Name)
	r, ok := msg.Snapshots[0].Reading("temperature")
	require.True(t, ok)
	assert.Equal(t, float32(21.7), r.Value)
	require.Len(t, msg.Diagnostics, 1)
	assert.Equal(t, "WARN", msg.Diagnostics[0].Level)

	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("stop")))
	_, _, err = client.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))

	require.Eventually(t, func() bool { return !sink.Active() }, 2*time.Second, time.Millisecond)
	assert.Zero(t, streamSrv.Active())
}

func TestRenderHTMLSaturates(t *testing.T) {
	s := model.NewSnapshot("x", "t", "l")
	s.Push("nan", float32(math.NaN()), "")
	s.Push("inf", float32(math.Inf(1)), "")
	s.Push("low", -1e12, "")
	s.Push("neg", -0.9, "")

	want := "<h2>x</h2>\n<ul>\n" +
		"<li>nan: 0 </li>\n" +
		"<li>inf: 2147483647 </li>\n" +
		"<li>low: -2147483648 </li>\n" +
		"<li>neg: 0 </li>\n" +
		"</ul>\n"
	assert.Equal(t, want, RenderHTML([]model.SensorSnapshot{s}))
}
