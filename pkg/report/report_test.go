package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/ecget/pkg/model"
)

func result(name string, outcome model.Outcome, bytes int64, reason error) model.DownloadResult {
	return model.DownloadResult{
		Descriptor:   model.FileDescriptor{Name: name, ProductCode: "ATL_NOM_1B", Baseline: "BA"},
		Outcome:      outcome,
		BytesWritten: bytes,
		Reason:       reason,
	}
}

func TestReporter_CountsAddUp(t *testing.T) {
	r := New()
	r.Record(result("a.ZIP", model.OutcomeSuccess, 100, nil))
	r.Record(result("b.ZIP", model.OutcomeSuccess, 200, nil))
	r.Record(result("c.ZIP", model.OutcomeSkipped, 0, nil))
	r.Record(result("d.ZIP", model.OutcomeFailed, 0, errors.New("boom")))
	r.RecordError("row 7: bad timestamp")

	s := r.Finalize()

	assert.Equal(t, 4, s.TotalRequested)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, s.TotalRequested, s.Succeeded+s.Skipped+s.Failed)
	assert.Equal(t, int64(300), s.TotalBytes)
	require.Len(t, s.Files, 4)
	assert.Equal(t, "failed", s.Files[3].Outcome)
	assert.Equal(t, "boom", s.Files[3].Reason)
	assert.Equal(t, []string{"row 7: bad timestamp"}, s.Errors)
}

func TestReporter_FinalizeIsIdempotent(t *testing.T) {
	r := New()
	r.Record(result("a.ZIP", model.OutcomeSuccess, 100, nil))

	first := r.Finalize()
	r.Record(result("late.ZIP", model.OutcomeSuccess, 100, nil))
	r.RecordError("late error")
	second := r.Finalize()

	assert.Equal(t, first.Succeeded, second.Succeeded)
	assert.Equal(t, first.TotalBytes, second.TotalBytes)
	assert.Len(t, second.Files, 1)
	assert.Empty(t, second.Errors)
}

func TestReporter_ConcurrentRecord(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(result("f.ZIP", model.OutcomeSuccess, 10, nil))
		}()
	}
	wg.Wait()

	s := r.Finalize()
	assert.Equal(t, 50, s.Succeeded)
	assert.Equal(t, int64(500), s.TotalBytes)
}

func TestWriteJSON(t *testing.T) {
	r := New()
	r.Record(result("a.ZIP", model.OutcomeSuccess, 100, nil))
	s := r.Finalize()

	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteJSON(s, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded model.Summary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s.Succeeded, decoded.Succeeded)
	assert.Equal(t, s.TotalBytes, decoded.TotalBytes)
	require.Len(t, decoded.Files, 1)
	assert.Equal(t, "a.ZIP", decoded.Files[0].Name)
}
