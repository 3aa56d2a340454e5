//go:build !windows

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ips.txt")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

// TestGetenv tests environment variable retrieval with defaults
func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		setEnv   bool
		def      string
		expected string
	}{
		{name: "returns value when set", key: "IPCOUNT_TEST_VAR", value: "json", setEnv: true, def: "text", expected: "json"},
		{name: "returns default when unset", key: "IPCOUNT_TEST_UNSET", def: "text", expected: "text"},
		{name: "returns default when empty", key: "IPCOUNT_TEST_EMPTY", value: "", setEnv: true, def: "text", expected: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.value)
			}
			assert.Equal(t, tt.expected, getenv(tt.key, tt.def))
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "4096", want: 4096},
		{in: "256MiB", want: 256 << 20},
		{in: "64M", want: 64 << 20},
		{in: "1G", want: 1 << 30},
		{in: "2 KiB", want: 2048},
		{in: "10B", want: 10},
		{in: "0", wantErr: true},
		{in: "-1M", wantErr: true},
		{in: "lots", wantErr: true},
		{in: "99999999999G", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseOptions(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		opts, err := parseOptions([]string{"-chunk", "1MiB", "-workers", "3", "-shards", "2", "-timeout", "5s", "-format", "json", "-v", "in.txt"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "in.txt", opts.path)
		assert.Equal(t, "json", opts.format)
		assert.Equal(t, int64(1<<20), opts.cfg.ChunkSize)
		assert.Equal(t, 3, opts.cfg.Workers)
		assert.Equal(t, 2, opts.cfg.Shards)
		assert.Equal(t, 5*time.Second, opts.cfg.Timeout)
		assert.True(t, opts.cfg.Verbose)
	})

	t.Run("environment defaults", func(t *testing.T) {
		t.Setenv("IPCOUNT_CHUNK_SIZE", "8K")
		t.Setenv("IPCOUNT_WORKERS", "5")
		t.Setenv("IPCOUNT_FORMAT", "json")
		opts, err := parseOptions([]string{"in.txt"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, int64(8<<10), opts.cfg.ChunkSize)
		assert.Equal(t, 5, opts.cfg.Workers)
		assert.Equal(t, "json", opts.format)
	})

	errorCases := map[string][]string{
		"missing file": {},
		"two files":    {"a", "b"},
		"bad format":   {"-format", "xml", "in.txt"},
		"bad chunk":    {"-chunk", "huge", "in.txt"},
		"zero workers": {"-workers", "0", "in.txt"},
		"bad timeout":  {"-timeout", "soon", "in.txt"},
		"unknown flag": {"-nope", "in.txt"},
	}
	for name, args := range errorCases {
		t.Run(name, func(t *testing.T) {
			_, err := parseOptions(args, &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}

// TestRun runs the command in-process
func TestRun(t *testing.T) {
	path := writeInput(t, "1.2.3.4\n1.2.3.4\n5.6.7.8\n")

	t.Run("text", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, run(context.Background(), []string{"-workers", "2", path}, &stdout, &stderr))
		assert.Contains(t, stdout.String(), "Unique IPs: 2\n")
		assert.Contains(t, stdout.String(), "Time: ")
	})

	t.Run("json with progress", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, run(context.Background(), []string{"-format", "json", "-progress", path}, &stdout, &stderr))

		var res struct {
			UniqueCount uint64 `json:"unique_count"`
			Records     uint64 `json:"records"`
		}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
		assert.Equal(t, uint64(2), res.UniqueCount)
		assert.Equal(t, uint64(3), res.Records)
	})

	t.Run("missing input", func(t *testing.T) {
		err := run(context.Background(), []string{filepath.Join(t.TempDir(), "gone")}, &bytes.Buffer{}, &bytes.Buffer{})
		assert.Error(t, err)
	})
}

// TestMainFatal checks that a failing run goes through logFatal
func TestMainFatal(t *testing.T) {
	oldLogFatal := logFatal
	oldArgs := os.Args
	defer func() {
		logFatal = oldLogFatal
		os.Args = oldArgs
	}()

	var fatalMsg string
	logFatal = func(format string, v ...interface{}) {
		fatalMsg = format
	}
	os.Args = []string{"ipcount"}

	main()
	assert.Equal(t, "ipcount: %v", fatalMsg)
}
