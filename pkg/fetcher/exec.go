package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultTimeout = 2 * time.Minute

// Fetcher returns a snapshot for a normalized channel identifier.
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) (*Snapshot, error)
}

// ExecFetcher runs `Path [Args...] <identifier>` and decodes its stdout.
type ExecFetcher struct {
	Path    string
	Args    []string
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewExecFetcher(path string, timeout time.Duration, logger *zap.Logger, args ...string) *ExecFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecFetcher{Path: path, Args: args, Timeout: timeout, Logger: logger}
}

func (f *ExecFetcher) Fetch(ctx context.Context, identifier string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	args := append(append([]string{}, f.Args...), identifier)
	cmd := exec.CommandContext(ctx, f.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	logger := f.Logger.With(zap.String("identifier", identifier), zap.Duration("elapsed", time.Since(start)))

	snap, err := Decode(stdout.Bytes())
	if runErr != nil {
		// a failure payload explains the exit better than the exit status
		if err != nil && errors.Is(err, ErrFetch) {
			logger.Warn("Fetcher reported failure", zap.Error(err))
			return nil, err
		}
		logger.Error("Fetcher process failed",
			zap.Error(runErr),
			zap.String("stderr", strings.TrimSpace(stderr.String())))
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, runErr)
	}
	if err != nil {
		logger.Warn("Fetcher returned no snapshot", zap.Error(err))
		return nil, err
	}

	logger.Debug("Snapshot fetched", zap.Int("posts", len(snap.Posts)))
	return snap, nil
}
