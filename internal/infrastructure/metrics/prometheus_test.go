package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusExporter_Scrape(t *testing.T) {
	c := NewCollector()
	c.CascadeStarted()
	c.TargetWritten()
	c.TargetWritten()

	exporter := NewPrometheusExporter(c)
	server := httptest.NewServer(exporter.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	for _, want := range []string{
		"tenancy_propagation_cascades_total 1",
		"tenancy_target_writes_total 2",
		"tenancy_target_failures_total 0",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
