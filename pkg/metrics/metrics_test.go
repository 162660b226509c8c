package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/herlein/lgwcal/pkg/channels"
	"github.com/herlein/lgwcal/pkg/rssi"
)

func TestObserveLock(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.ObserveLock(0, 4, true)
	c.ObserveLock(0, 6, false)

	if got := testutil.ToFloat64(c.LockAttempts.WithLabelValues("0")); got != 10 {
		t.Fatalf("lock attempts = %v, want 10", got)
	}
	if got := testutil.ToFloat64(c.LockFailures.WithLabelValues("0")); got != 1 {
		t.Fatalf("lock failures = %v, want 1", got)
	}
}

func TestObserveStepDropsUndefinedPercentiles(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	full := rssi.Report{
		P20: rssi.Threshold{Code: 10, DBm: -127, Set: true},
		P50: rssi.Threshold{Code: 20, DBm: -117, Set: true},
		P80: rssi.Threshold{Code: 30, DBm: -107, Set: true},
	}
	c.ObserveStep(868100000, 368640, full)
	if got := testutil.ToFloat64(c.Percentiles.WithLabelValues("50")); got != -117 {
		t.Fatalf("p50 = %v, want -117", got)
	}

	partial := full
	partial.P80 = rssi.Threshold{}
	c.ObserveStep(868150000, 368640, partial)
	if n := testutil.CollectAndCount(c.Percentiles); n != 2 {
		t.Fatalf("percentile series = %d, want 2", n)
	}
	if got := testutil.ToFloat64(c.Samples); got != 2*368640 {
		t.Fatalf("samples = %v", got)
	}
	c.ObserveSkip()
	if got := testutil.ToFloat64(c.Steps.WithLabelValues("skipped")); got != 1 {
		t.Fatalf("skipped steps = %v", got)
	}
}

func TestHandlerExposesPlanWarnings(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.ObservePlan([]channels.Warning{{Kind: channels.SpanExceeded}, {Kind: channels.ConfigInconsistency}})

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "lgwcal_plan_warnings_total") {
		t.Fatalf("metrics output missing plan warnings:\n%s", rr.Body.String())
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	if a.Steps != b.Steps {
		t.Fatal("second collector did not reuse registered vectors")
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveLock(1, 6, false)
	c.ObserveStep(0, 0, rssi.Report{})
	c.ObserveSkip()
	c.ObservePlan(nil)
}
