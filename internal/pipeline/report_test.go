package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportFinalize(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	r := &Report{
		StartedAt:  time.Date(2024, 3, 1, 8, 0, 0, 0, loc),
		FinishedAt: time.Date(2024, 3, 1, 8, 5, 0, 0, loc),
		Directories: []DirectoryResult{
			{Path: "/b", Status: StatusFailed},
			{Path: "/a", Status: StatusProcessed, Groups: []GroupResult{
				{Timestamp: "t1", Status: StatusProcessed},
				{Timestamp: "t2", Status: StatusFailed},
				{Timestamp: "t3", Status: StatusSkipped, Excluded: []Exclusion{
					{Path: "x", Reason: "probe failed"},
					{Path: "y", Reason: reasonDuplicate},
				}},
			}},
			{Path: "/c", Status: StatusSkipped},
			{Path: "/d", Status: StatusPlanned, Groups: []GroupResult{{Timestamp: "t4", Status: StatusPlanned}}},
		},
	}

	r.Finalize()

	assert.Equal(t, time.UTC, r.StartedAt.Location())
	assert.Equal(t, "/a", r.Directories[0].Path)
	assert.Equal(t, "/d", r.Directories[3].Path)
	assert.Equal(t, Summary{
		Directories:  4,
		Processed:    1,
		Skipped:      1,
		Failed:       1,
		Planned:      1,
		Groups:       4,
		Composites:   2,
		GroupsFailed: 1,
		ProbeFailed:  1,
	}, r.Summary)
}

func TestReportJSON(t *testing.T) {
	r := &Report{RunID: "abc", Root: "/footage", Directories: []DirectoryResult{
		{Path: "/footage", Status: StatusSkipped, Reason: "no matching clips"},
	}}
	r.Finalize()

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "abc", decoded["run_id"])
	summary := decoded["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["skipped"])
}
