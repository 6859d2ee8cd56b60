// Package batch implements the confidential-compute execution mode: one
// rebalance cycle driven by a protected key, with a result descriptor
// written for the host on exit.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PrivateKeyField is the protected-data key holding the wallet key.
const PrivateKeyField = "private-key"

// ProtectedDataReader yields secret values from the worker's protected
// dataset.
type ProtectedDataReader interface {
	Value(key string) (string, error)
}

// FileReader reads protected data deserialized by the worker host into a
// JSON object file.
type FileReader struct {
	path string
}

// NewFileReader resolves the dataset path from the worker environment
// (IEXEC_IN + IEXEC_DATASET_FILENAME).
func NewFileReader() (*FileReader, error) {
	in := os.Getenv("IEXEC_IN")
	name := os.Getenv("IEXEC_DATASET_FILENAME")
	if in == "" || name == "" {
		return nil, errors.New("IEXEC_IN and IEXEC_DATASET_FILENAME must be set in batch mode")
	}
	return &FileReader{path: filepath.Join(in, name)}, nil
}

// Value returns the named secret from the dataset file.
func (r *FileReader) Value(key string) (string, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read protected data at %s", r.path)
	}

	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return "", errors.Wrap(err, "failed to decode protected data")
	}

	v, ok := values[key]
	if !ok || v == "" {
		return "", errors.Errorf("protected data has no value for %q", key)
	}
	return v, nil
}

type rebalanceRunner interface {
	RebalanceOnce(ctx context.Context, privateKeyHex string) error
}

// Runner executes one batch cycle and writes the completion files.
// The reader is constructed lazily so that a misconfigured dataset still
// produces the completion files.
type Runner struct {
	outDir    string
	newReader func() (ProtectedDataReader, error)
	runner    rebalanceRunner
	logger    *zap.Logger
}

// NewRunner creates a batch runner writing results under outDir.
func NewRunner(outDir string, newReader func() (ProtectedDataReader, error), runner rebalanceRunner, logger *zap.Logger) *Runner {
	return &Runner{outDir: outDir, newReader: newReader, runner: runner, logger: logger}
}

// Run reads the protected key, performs one rebalance cycle and writes
// result.txt. computed.json is written unconditionally, success or
// failure, as the completion signal to the host.
func (r *Runner) Run(ctx context.Context) error {
	runErr := r.run(ctx)

	computed := map[string]string{
		"deterministic-output-path": filepath.Join(r.outDir, "result.txt"),
	}
	if runErr != nil {
		computed["deterministic-output-path"] = r.outDir
		computed["error-message"] = "Rebalancing failed: " + runErr.Error()
		r.logger.Error("batch rebalancing failed", zap.Error(runErr))
	}

	payload, err := json.Marshal(computed)
	if err != nil {
		return errors.Wrap(err, "failed to encode computed.json")
	}
	if err := os.WriteFile(filepath.Join(r.outDir, "computed.json"), payload, 0o644); err != nil {
		return errors.Wrap(err, "failed to write computed.json")
	}

	return runErr
}

func (r *Runner) run(ctx context.Context) error {
	r.logger.Info("running in batch mode, reading protected data")

	reader, err := r.newReader()
	if err != nil {
		return errors.Wrap(err, "failed to open protected data")
	}

	key, err := reader.Value(PrivateKeyField)
	if err != nil {
		return errors.Wrap(err, "failed to retrieve private key from protected data")
	}
	r.logger.Info("retrieved protected private key")

	if err := r.runner.RebalanceOnce(ctx, key); err != nil {
		return err
	}

	result := fmt.Sprintf("Rebalancing completed at %s", time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(r.outDir, "result.txt"), []byte(result), 0o644); err != nil {
		return errors.Wrap(err, "failed to write result file")
	}
	return nil
}
