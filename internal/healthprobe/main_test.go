package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseOptionsWgetStyleArgs(t *testing.T) {
	options, err := parseOptions([]string{
		"healthprobe",
		"--quiet",
		"--tries=1",
		"--output-document=-",
		"--timeout",
		"7",
		"http://localhost:5100/health",
	})
	require.NoError(t, err)
	require.True(t, options.quiet)
	require.Equal(t, "-", options.output)
	require.Equal(t, 7*time.Second, options.timeout)
	require.Equal(t, "http://localhost:5100/health", options.url)
}

func TestParseOptionsInvalidTimeout(t *testing.T) {
	_, err := parseOptions([]string{"healthprobe", "--timeout", "abc", "http://localhost:5100/health"})
	require.Error(t, err)
}

func TestBuildDefaultHealthURL(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SERVER_CONTEXTPATH", "")
	require.Equal(t, "http://127.0.0.1:5100/health", buildDefaultHealthURL())

	t.Setenv("SERVER_PORT", "8089")
	t.Setenv("SERVER_CONTEXTPATH", "/api")
	require.Equal(t, "http://127.0.0.1:8089/api/health", buildDefaultHealthURL())
}

func TestRunProbeAcceptsHealthyService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`{"status":"OK","uptime":42}`))
	}))
	defer server.Close()

	err := runProbe(probeOptions{url: server.URL, spider: true, timeout: time.Second})
	require.NoError(t, err)
}

func TestRunProbeWritesFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`{"status":"OK","uptime":42}`))
	}))
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "health.json")
	err := runProbe(probeOptions{url: server.URL, output: outputPath, timeout: time.Second})
	require.NoError(t, err)

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"OK","uptime":42}`, string(content))
}

func TestRunProbeRejectsUnhealthyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := runProbe(probeOptions{url: server.URL, output: "-", timeout: time.Second})
	require.Error(t, err)
}

func TestRunProbeRejectsHealthyStatusWithBrokenBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`<html>gateway placeholder</html>`))
	}))
	defer server.Close()

	err := runProbe(probeOptions{url: server.URL, spider: true, timeout: time.Second})
	require.Error(t, err)
}
