package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubReader struct {
	values map[string]string
	err    error
}

func (r *stubReader) Value(key string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.values[key], nil
}

type stubRunner struct {
	gotKey string
	err    error
}

func (r *stubRunner) RebalanceOnce(ctx context.Context, privateKeyHex string) error {
	r.gotKey = privateKeyHex
	return r.err
}

func fixedReader(r ProtectedDataReader) func() (ProtectedDataReader, error) {
	return func() (ProtectedDataReader, error) { return r, nil }
}

func readComputed(t *testing.T, dir string) map[string]string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, "computed.json"))
	require.NoError(t, err)
	var computed map[string]string
	require.NoError(t, json.Unmarshal(raw, &computed))
	return computed
}

func TestRunSuccess(t *testing.T) {
	dir := t.TempDir()
	reader := &stubReader{values: map[string]string{PrivateKeyField: "deadbeef"}}
	runner := &stubRunner{}

	err := NewRunner(dir, fixedReader(reader), runner, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "deadbeef", runner.gotKey)

	result, err := os.ReadFile(filepath.Join(dir, "result.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(result), "Rebalancing completed")

	computed := readComputed(t, dir)
	assert.Equal(t, filepath.Join(dir, "result.txt"), computed["deterministic-output-path"])
	assert.NotContains(t, computed, "error-message")
}

func TestRunRebalanceFailureStillWritesComputed(t *testing.T) {
	dir := t.TempDir()
	reader := &stubReader{values: map[string]string{PrivateKeyField: "deadbeef"}}
	runner := &stubRunner{err: errors.New("no viable route for swap")}

	err := NewRunner(dir, fixedReader(reader), runner, zap.NewNop()).Run(context.Background())
	require.Error(t, err)

	computed := readComputed(t, dir)
	assert.Equal(t, dir, computed["deterministic-output-path"])
	assert.Contains(t, computed["error-message"], "no viable route")
}

func TestRunMissingKeyStillWritesComputed(t *testing.T) {
	dir := t.TempDir()
	reader := &stubReader{err: errors.New("dataset unreadable")}
	runner := &stubRunner{}

	err := NewRunner(dir, fixedReader(reader), runner, zap.NewNop()).Run(context.Background())
	require.Error(t, err)

	assert.Empty(t, runner.gotKey, "rebalance must not run without the protected key")
	computed := readComputed(t, dir)
	assert.Contains(t, computed["error-message"], "private key")
}

func TestRunReaderSetupFailureStillWritesComputed(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{}
	newReader := func() (ProtectedDataReader, error) {
		return nil, errors.New("IEXEC_IN and IEXEC_DATASET_FILENAME must be set in batch mode")
	}

	err := NewRunner(dir, newReader, runner, zap.NewNop()).Run(context.Background())
	require.Error(t, err)

	assert.Empty(t, runner.gotKey, "rebalance must not run without the dataset")
	computed := readComputed(t, dir)
	assert.Equal(t, dir, computed["deterministic-output-path"])
	assert.Contains(t, computed["error-message"], "protected data")
}

func TestFileReaderValue(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataset.json"),
		[]byte(`{"private-key":"cafe"}`), 0o644))

	t.Setenv("IEXEC_IN", dir)
	t.Setenv("IEXEC_DATASET_FILENAME", "dataset.json")

	r, err := NewFileReader()
	require.NoError(t, err)

	v, err := r.Value(PrivateKeyField)
	require.NoError(t, err)
	assert.Equal(t, "cafe", v)

	_, err = r.Value("missing")
	require.Error(t, err)
}

func TestFileReaderRequiresEnv(t *testing.T) {
	t.Setenv("IEXEC_IN", "")
	t.Setenv("IEXEC_DATASET_FILENAME", "")

	_, err := NewFileReader()
	require.Error(t, err)
}
