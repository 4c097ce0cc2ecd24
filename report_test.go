package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/sermondl/sermonaudio/types"
)

func sampleReport() *types.JobReport {
	col := types.Collection{Kind: types.OwnerKindSpeaker, ID: "11657", Name: "John Doe"}
	r := types.NewJobReport(col, []string{"1", "2", "3"})
	r.Outcomes[0] = types.Outcome{ItemID: "1", State: types.OutcomeDone, Path: "out/John Doe/A.mp3", Reason: ""}
	r.Outcomes[1] = types.Outcome{ItemID: "2", State: types.OutcomeFailed, Path: "", Reason: "all quality tiers failed"}

	return r
}

func TestWriteReportsToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeReports(path, []*types.JobReport{sampleReport()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "speaker", got[0]["kind"])
	assert.Equal(t, "John Doe", got[0]["owner_name"])

	outcomes, ok := got[0]["outcomes"].([]any)
	require.True(t, ok)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "done", outcomes[0].(map[string]any)["state"])
	assert.Equal(t, "failed", outcomes[1].(map[string]any)["state"])
	assert.Equal(t, "pending", outcomes[2].(map[string]any)["state"])
}

func TestRenderReport(t *testing.T) {
	t.Parallel()

	out := renderReport(sampleReport())
	assert.Contains(t, out, "John Doe")
	assert.Contains(t, out, "out/John Doe/A.mp3")
	assert.Contains(t, out, "all quality tiers failed")
	assert.Contains(t, out, "1 done, 0 skipped, 1 failed")
}
