package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("parse", 150*time.Millisecond)
	pr.IncStageResult("parse", ResultSuccess)
	pr.ObserveCompileDuration(500 * time.Millisecond)
	pr.IncCompileOutcome(OutcomeCompiled)
	pr.AddDiagnostics("error", 2)
	pr.ObservePartials(1)
	pr.SetSchemaSlots("resolved", 3)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["mdocpack_compile_outcomes_total"])
	require.True(t, names["mdocpack_diagnostics_total"])
	require.True(t, names["mdocpack_schema_slots"])
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncCompileOutcome(OutcomeFailed)

	path := filepath.Join(t.TempDir(), "mdocpack.prom")
	require.NoError(t, WriteTextfile(path, pr.Registry()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `mdocpack_compile_outcomes_total{outcome="failed"} 1`))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncCompileOutcome(OutcomeCompiled)
	pr.AddDiagnostics("error", 1)
	_ = Or(nil)
}
