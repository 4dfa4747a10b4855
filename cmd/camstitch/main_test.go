package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/camstitch/internal/ffmpeg"
	"github.com/keagan/camstitch/internal/pipeline"
)

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	report := &pipeline.Report{RunID: "r1", Root: "/footage"}
	report.Finalize()

	require.NoError(t, writeReport(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded pipeline.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "r1", decoded.RunID)
	assert.Equal(t, "/footage", decoded.Root)
}

func TestProgressObserver(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressObserver(&buf)

	// events before the scan must not panic
	p.OnGroupDone("/a", pipeline.GroupResult{Timestamp: "t"})

	p.OnScan("/root", 2)
	p.OnDirectoryStart("/root/a", 3)
	p.OnEncodeProgress("/root/a", "/root/a/combined_tmp/2024-03-01_08-00-00_combined.mp4",
		ffmpeg.Progress{Frame: 120, Time: "00:00:04.000000", Speed: "2.1x"})
	p.OnGroupDone("/root/a", pipeline.GroupResult{Timestamp: "2024-03-01_08-00-00", Status: pipeline.StatusProcessed})
	p.OnDirectoryDone(pipeline.DirectoryResult{Path: "/root/a"})
	p.OnDirectoryDone(pipeline.DirectoryResult{Path: "/root/b"})
	p.Finish()

	assert.NotEmpty(t, buf.String())
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "camstitch dev\n", buf.String())
}
