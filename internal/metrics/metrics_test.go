package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

func TestRecordResult(t *testing.T) {
	m := New()
	r := ingest.NewResult("run", false)
	r.For(records.TypeProject).AddSuccess("Proj-A", uri.New("project", 1))
	r.For(records.TypeProject).AddSuccess("Proj-B", uri.New("project", 2))
	r.For(records.TypeDataset).AddBlocked("DS-1")
	r.Finish()

	m.RecordResult(r)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.objects.WithLabelValues("project", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.objects.WithLabelValues("dataset", "blocked")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.objects.WithLabelValues("datafile", "error")))
	assert.Equal(t, float64(r.FinishedAt.Unix()), testutil.ToFloat64(m.lastRun))
}

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "project/", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", "project/", 0, time.Second)
	m.ObserveTransfer("transferred", 100)
	m.ObserveTransfer("skipped", 0)
	m.ObserveStage(records.TypeProject, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "error")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.bytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.duration.WithLabelValues("project")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveTransfer("transferred", 5)

	path := filepath.Join(t.TempDir(), "foundry.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "foundry_datafile_transfer_bytes_total 5"))
}
