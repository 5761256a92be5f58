package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから名前とラベルが一致するメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("%s%v metric not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestRecordFetchAttempt_LabelsByPlatformAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchAttempt("amazon", true)
	c.RecordFetchAttempt("amazon", true)
	c.RecordFetchAttempt("flipkart", false)

	m := findMetric(t, reg, "salescout_fetch_attempts_total", map[string]string{"platform": "amazon", "result": "success"})
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("amazon success = %v, want 2", v)
	}
	m = findMetric(t, reg, "salescout_fetch_attempts_total", map[string]string{"platform": "flipkart", "result": "failure"})
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("flipkart failure = %v, want 1", v)
	}
}

func TestRecordCheckAndAlert(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheck("done")
	c.RecordCheck("retry")
	c.RecordCheck("done")
	c.RecordAlert("price_drop")
	c.RecordEnqueued(3)
	c.RecordEnqueued(2)

	if v := findMetric(t, reg, "salescout_price_checks_total", map[string]string{"outcome": "done"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("checks done = %v, want 2", v)
	}
	if v := findMetric(t, reg, "salescout_alerts_total", map[string]string{"kind": "price_drop"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("alerts price_drop = %v, want 1", v)
	}
	if v := findMetric(t, reg, "salescout_jobs_enqueued_total", nil).GetCounter().GetValue(); v != 5 {
		t.Errorf("enqueued = %v, want 5", v)
	}
}

func TestRecordFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency(250 * time.Millisecond)

	m := findMetric(t, reg, "salescout_fetch_latency_seconds", nil)
	if n := m.GetHistogram().GetSampleCount(); n != 1 {
		t.Errorf("sample count = %d, want 1", n)
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("同じレジストリへの二重登録はpanicするべき")
		}
	}()
	_ = NewCollector(reg)
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordNotification(true)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `salescout_notifications_total{result="success"} 1`) {
		t.Errorf("notifications metric not in output:\n%s", body)
	}
}
