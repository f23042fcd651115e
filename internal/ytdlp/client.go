package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"spool/internal/config"
	"spool/internal/logging"
)

var (
	// ErrTimeout marks an operation abandoned because yt-dlp exceeded its
	// configured deadline.
	ErrTimeout = errors.New("yt-dlp timeout")
	// ErrExternalTool marks a non-zero exit or other subprocess failure.
	ErrExternalTool = errors.New("yt-dlp error")
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	opts         options
	listTimeout  time.Duration
	fetchTimeout time.Duration
	exec         Executor
	logger       *slog.Logger
}

// New constructs a yt-dlp client from configuration.
func New(cfg *config.Config, logger *slog.Logger, clientOpts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("ytdlp client requires config")
	}
	if strings.TrimSpace(cfg.YtDlp.Binary) == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		opts:         optionsFromConfig(cfg),
		listTimeout:  time.Duration(cfg.YtDlp.ListTimeout) * time.Second,
		fetchTimeout: time.Duration(cfg.YtDlp.FetchTimeout) * time.Second,
		exec:         commandExecutor{},
		logger:       logging.NewComponentLogger(logger, "ytdlp"),
	}
	for _, opt := range clientOpts {
		opt(client)
	}
	return client, nil
}

// ListPlaylist returns the ordered item ids of the watched playlist. The
// listing is all-or-nothing: any subprocess failure yields no ids.
func (c *Client) ListPlaylist(ctx context.Context) ([]string, error) {
	listCtx := ctx
	if c.listTimeout > 0 {
		var cancel context.CancelFunc
		listCtx, cancel = context.WithTimeout(ctx, c.listTimeout)
		defer cancel()
	}

	var ids []string
	var stderrTail tail
	err := c.exec.Run(listCtx, c.opts.binary, listArgs(c.opts), func(line string) {
		line = strings.TrimSpace(line)
		if line != "" {
			ids = append(ids, line)
		}
	}, stderrTail.add)
	if err != nil {
		return nil, c.classify("list playlist", err, &stderrTail)
	}

	c.logger.Debug("playlist listed", logging.Int("items", len(ids)))
	return ids, nil
}

// FetchOne downloads a single item, writing it to the configured download
// directory and recording it in yt-dlp's own download archive.
func (c *Client) FetchOne(ctx context.Context, id string) error {
	fetchCtx := ctx
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	var stderrTail tail
	logProgress := func(line string) {
		switch {
		case strings.Contains(line, "Destination:"),
			strings.Contains(line, "[download] 100%"),
			strings.Contains(line, "has already been recorded"):
			c.logger.Info(strings.TrimSpace(line), logging.String(logging.FieldItem, id))
		}
	}
	err := c.exec.Run(fetchCtx, c.opts.binary, fetchArgs(c.opts, id), logProgress, func(line string) {
		stderrTail.add(line)
		logProgress(line)
	})
	if err != nil {
		return c.classify(fmt.Sprintf("fetch %s", id), err, &stderrTail)
	}
	return nil
}

// FetchSubtitles downloads SRT subtitles for an already-fetched item.
// Failures are reported but the caller treats them as best-effort.
func (c *Client) FetchSubtitles(ctx context.Context, id string) error {
	subCtx := ctx
	if c.listTimeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(ctx, c.listTimeout)
		defer cancel()
	}

	var stderrTail tail
	err := c.exec.Run(subCtx, c.opts.binary, subtitleArgs(c.opts, id), nil, stderrTail.add)
	if err != nil {
		return c.classify(fmt.Sprintf("fetch subtitles %s", id), err, &stderrTail)
	}
	return nil
}

func (c *Client) classify(operation string, err error, stderr *tail) error {
	detail := stderr.String()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, operation)
	}
	if detail != "" {
		return fmt.Errorf("%w: %s: %v (%s)", ErrExternalTool, operation, err, detail)
	}
	return fmt.Errorf("%w: %s: %v", ErrExternalTool, operation, err)
}

// tail retains the last few lines written to it, for error context.
type tail struct {
	lines []string
}

const tailSize = 5

func (t *tail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > tailSize {
		t.lines = t.lines[len(t.lines)-tailSize:]
	}
}

func (t *tail) String() string {
	if t == nil || len(t.lines) == 0 {
		return ""
	}
	return strings.Join(t.lines, " | ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if forward != nil {
				forward(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, onStdout)
	go scan(stderr, onStderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
