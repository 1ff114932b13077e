package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveDocumentDuration(1500 * time.Millisecond)
	pr.ObserveBuildDuration(2 * time.Second)
	pr.IncCompilerRun()
	pr.IncToolRun("bibliography", ResultSuccess)
	pr.IncDiagnostic("WCONV01")
	pr.IncDocumentOutcome(true)
	pr.IncBuildOutcome("success")
	pr.SetWorkers(4)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncCompilerRun()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "texbuilder_compiler_runs_total 1") {
		t.Fatalf("expected compiler run counter in scrape output:\n%s", body)
	}
}
