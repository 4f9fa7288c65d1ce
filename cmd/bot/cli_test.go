package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muratoffalex/pablos/internal/config"
	"github.com/muratoffalex/pablos/internal/database"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/memory"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	for _, name := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy", "MODEL_ACCESS_KEY", "TELEGRAM_BOT_TOKEN"} {
		t.Setenv(name, "")
	}

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pablos.toml")
	content := fmt.Sprintf("[database]\ndsn = %q\n[memory]\nbackend = \"sqlite\"\n[logging]\nlevel = \"error\"\n%s", filepath.Join(dir, "bot.db"), body)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// seedHistory stores pairs one minute apart starting at at.
func seedHistory(t *testing.T, configPath string, userID int64, at time.Time, pairs ...[2]string) {
	t.Helper()
	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	db, err := database.NewSQLiteDB(cfg.GetDatabaseDSN(), logger.NewTestLogger())
	require.NoError(t, err)
	defer db.Close()

	store := memory.NewSQLiteStore(db, memory.StoreOptions{})
	for i, texts := range pairs {
		pair, err := memory.NewPair(texts[0], texts[1], at.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, store.AppendPair(context.Background(), userID, pair))
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dev")
}

func TestHistoryShowAndClear(t *testing.T) {
	path := writeConfig(t, "")
	seedHistory(t, path, 42, time.Now().Add(-time.Hour), [2]string{"halo", "halo juga bro"}, [2]string{"apa kabar?", "baik dong"})

	stdout, _, err := executeCLI(t, "--config", path, "history", "show", "--user", "42")
	require.NoError(t, err)
	assert.Contains(t, stdout, "backend: sqlite")
	assert.Contains(t, stdout, "turns: 4")
	assert.Contains(t, stdout, "user: halo")
	assert.Contains(t, stdout, "assistant: baik dong")

	stdout, _, err = executeCLI(t, "--config", path, "history", "show", "--user", "42", "--turns", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "turns: 2")
	assert.NotContains(t, stdout, "halo juga bro")

	stdout, _, err = executeCLI(t, "--config", path, "history", "clear", "--user", "42")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cleared history of user 42")

	stdout, _, err = executeCLI(t, "--config", path, "history", "show", "--user", "42")
	require.NoError(t, err)
	assert.Contains(t, stdout, "turns: 0")
}

func TestHistoryShowHidesExpiredConversation(t *testing.T) {
	path := writeConfig(t, "")
	// Older than the default memory.ttl of 168h.
	seedHistory(t, path, 42, time.Now().Add(-200*time.Hour), [2]string{"halo", "halo juga bro"})

	stdout, _, err := executeCLI(t, "--config", path, "history", "show", "--user", "42")
	require.NoError(t, err)
	assert.Contains(t, stdout, "turns: 0")
	assert.NotContains(t, stdout, "halo juga bro")
}

func TestHistoryShowRequiresUser(t *testing.T) {
	_, _, err := executeCLI(t, "--config", writeConfig(t, ""), "history", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "user" not set`)
}

func TestEndpointsListInPriorityOrder(t *testing.T) {
	path := writeConfig(t, `
[[ai.endpoints]]
name = "backup"
base_url = "https://backup.example/v1"
api_key = "k2"
model = "gpt-4o-mini"
priority = 2

[[ai.endpoints]]
name = "primary"
base_url = "https://primary.example/v1"
api_key = "k1"
priority = 1
`)

	stdout, _, err := executeCLI(t, "--config", path, "endpoints", "list")
	require.NoError(t, err)
	assert.Regexp(t, `(?s)1\s+primary\s+gpt-4\.1\s+1.*2\s+backup\s+gpt-4o-mini\s+2`, stdout)
}

func TestEndpointsProbe(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/models" {
			_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o-mini"},{"id":"gpt-4.1"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"1","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`))
	}))
	defer healthy.Close()
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			_, _ = w.Write([]byte(`{"data":[{"id":"some-other-model"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"2","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":null},"finish_reason":"length"}]}`))
	}))
	defer empty.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"upstream overloaded"}}`, http.StatusBadGateway)
	}))
	defer broken.Close()

	path := writeConfig(t, fmt.Sprintf(`
[[ai.endpoints]]
name = "healthy"
base_url = %q
api_key = "k"

[[ai.endpoints]]
name = "empty"
base_url = %q
api_key = "k"

[[ai.endpoints]]
name = "broken"
base_url = %q
api_key = "k"
`, healthy.URL+"/v1", empty.URL+"/v1", broken.URL+"/v1"))

	stdout, _, err := executeCLI(t, "--config", path, "endpoints", "probe")
	require.NoError(t, err)
	assert.Regexp(t, `healthy\s+gpt-4\.1\s+ok\s+\S+\s+yes`, stdout)
	assert.Regexp(t, `empty content \(finish_reason=length\)\s+\S+\s+no`, stdout)
	assert.Regexp(t, `upstream overloaded\s+\S+\s+unknown`, stdout)
}

func TestEndpointsProbeAllFailing(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	path := writeConfig(t, fmt.Sprintf("[[ai.endpoints]]\nname = \"broken\"\nbase_url = %q\napi_key = \"k\"\n", broken.URL))

	_, _, err := executeCLI(t, "--config", path, "endpoints", "probe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 1 endpoints failed")
}

func TestRunRequiresToken(t *testing.T) {
	_, _, err := executeCLI(t, "--config", writeConfig(t, "[ai]\nuse_mock = true\n"), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram token is required")
}
