package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", stdout)
}

func TestConfigInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	stdout, _, err := executeCLI(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sleep-percentage: 50")
}

func TestConfigInitRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("sleep-percentage: 10\n"), 0o644))

	_, _, err := executeCLI(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = executeCLI(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sleep-percentage: 50")
}

func TestConfigShowAppliesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("sleep-percentage: 66\n"), 0o644))

	stdout, _, err := executeCLI(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "sleep-percentage: 66")
	assert.Contains(t, stdout, "timeout-seconds: 30")
}

func TestConfigShowLeavesMissingFileAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	stdout, _, err := executeCLI(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "sleep-percentage: 50")
	assert.Contains(t, stdout, "history-retention: 1024")
	assert.NoFileExists(t, path)
}

func TestBotsRejectInvalidFlags(t *testing.T) {
	cases := map[string][]string{
		"zero count":        {"bots", "--count", "0"},
		"zero interval":     {"bots", "--interval", "0s"},
		"negative interval": {"bots", "--interval", "-1s"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := executeCLI(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "must be positive")
		})
	}
}

func TestConfigShowRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("sleep-percentage: 0\n"), 0o644))

	_, _, err := executeCLI(t, "config", "show", "--config", path)
	require.Error(t, err)
}

func TestStatusRendersTable(t *testing.T) {
	pterm.DisableColor()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"worlds":[{"world":"world","sleeping":1,"eligible":3,"required":2,"time":18000,"night":true,"thundering":false}]}`))
	}))
	defer ts.Close()

	stdout, _, err := executeCLI(t, "status", "--addr", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "World")
	assert.Contains(t, stdout, "18000")
	assert.Contains(t, stdout, "night")
}

func TestStatusReportsServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine stopped", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, _, err := executeCLI(t, "status", "--addr", ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine stopped")
}

func TestRenderStatusWithoutWorlds(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, StatusResponse{}))
	assert.Equal(t, "No overworlds loaded.\n", buf.String())
}
