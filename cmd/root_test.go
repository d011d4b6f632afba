package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	file := filepath.Join(t.TempDir(), "syncevents.yaml")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	var out bytes.Buffer
	cmd := NewCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", file))

	err := cmd.Execute()
	return out.String(), err
}

func TestSyncCmd(t *testing.T) {
	out, err := execute(t,
		"sync", "update", "echo://books/1",
		"--data", `{"title":"dune"}`,
		"--aio-store-sqlite-enable=false",
		"--system-signal-timeout", "10ms",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "xhr:update echo://books/1")
	assert.Contains(t, out, `xhr:success 200 {"title":"dune"}`)
	assert.Contains(t, out, "drained async:load-complete")
}

func TestSyncCmdInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "Method", args: []string{"sync", "fetch", "echo://books/1"}},
		{name: "Data", args: []string{"sync", "update", "echo://books/1", "--data", "{"}},
		{name: "Args", args: []string{"sync", "read"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, append(tc.args, "--aio-store-sqlite-enable=false")...)
			assert.Error(t, err)
		})
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "syncevents version v0.1.0-alpha")
}
