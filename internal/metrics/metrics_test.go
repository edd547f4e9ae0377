package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.ObserveEvaluation("ok", time.Millisecond)
	m.ObserveEvaluation("ok", time.Millisecond)
	m.ObserveEvaluation("unresolved_policy", time.Millisecond)
	m.IncrementTableCompiled(true)
	m.IncrementTableCompiled(false)
	m.AddFallbackPolicies(3)
	m.AddFallbackPolicies(0)

	if got := counterValue(t, m, "downpay_evaluations_total", map[string]string{"outcome": "ok"}); got != 2 {
		t.Errorf("expected 2 ok evaluations, got %v", got)
	}
	if got := counterValue(t, m, "downpay_evaluations_total", map[string]string{"outcome": "unresolved_policy"}); got != 1 {
		t.Errorf("expected 1 unresolved evaluation, got %v", got)
	}
	if got := counterValue(t, m, "downpay_rule_tables_compiled_total", map[string]string{"fallback": "true"}); got != 1 {
		t.Errorf("expected 1 table with fallback, got %v", got)
	}
	if got := counterValue(t, m, "downpay_fallback_policies_total", nil); got != 3 {
		t.Errorf("expected 3 fallback policies, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// None of these may panic.
	m.ObserveEvaluation("ok", time.Millisecond)
	m.IncrementTableCompiled(true)
	m.AddFallbackPolicies(1)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil metrics handler, got %d", rr.Code)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveEvaluation("ok", time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "downpay_evaluate_duration_seconds") {
		t.Error("expected latency histogram in exposition")
	}
}
