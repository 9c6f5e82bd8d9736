package profiling

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderNestsSpans(t *testing.T) {
	r := &Recorder{}
	r.Start("ignored").Stop()

	r.Enable()
	outer := r.Start("open client")
	r.Start("dial").Stop()
	outer.Stop()
	r.Start("read file").Stop()

	var buf bytes.Buffer
	r.Summarize(&buf)
	out := buf.String()

	assert.NotContains(t, out, "ignored")
	assert.Contains(t, out, "\nopen client ")
	assert.Contains(t, out, "\n  dial ")
	assert.Contains(t, out, "\nread file ")
	assert.Contains(t, out, "total ")
}

func TestRecorderDisabledSummarizesNothing(t *testing.T) {
	var buf bytes.Buffer
	(&Recorder{}).Summarize(&buf)
	assert.Empty(t, buf.String())
}

func TestCobraProfilerWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.out")
	mem := filepath.Join(dir, "mem.out")

	preRan := false
	cmd := &cobra.Command{
		Use: "probe",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			preRan = true
			return nil
		},
		RunE: func(*cobra.Command, []string) error { return nil },
	}
	p := NewCobraProfiler()
	p.AddFlags(cmd)
	p.Wrap(cmd)

	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--cpu-profile", cpu, "--mem-profile", mem})
	require.NoError(t, cmd.Execute())

	assert.True(t, preRan, "existing pre-run hook must still run")
	assert.FileExists(t, cpu)
	info, err := os.Stat(mem)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
	assert.Contains(t, stderr.String(), "CPU profile written to "+cpu)
	assert.Contains(t, stderr.String(), "Memory profile written to "+mem)
}
