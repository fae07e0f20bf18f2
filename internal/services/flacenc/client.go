package flacenc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"platter/internal/metadata"
)

// ProgressUpdate captures flac encoder progress output.
type ProgressUpdate struct {
	Percent float64
	Message string
}

// Request describes one wav-to-FLAC encode.
type Request struct {
	InputPath   string
	OutputPath  string
	Tags        []metadata.Tag
	PicturePath string
}

// Encoder defines the behaviour required by the encoding handler.
type Encoder interface {
	Encode(ctx context.Context, req Request, progress func(ProgressUpdate)) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
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

// WithTimeout bounds a single encode invocation.
func WithTimeout(seconds int) Option {
	return func(c *Client) {
		c.timeout = time.Duration(seconds) * time.Second
	}
}

// Client wraps flac CLI interactions.
type Client struct {
	binary           string
	compressionLevel int
	verify           bool
	timeout          time.Duration
	exec             Executor
}

// New constructs a flac client. The compression level must be within the
// encoder's 0-8 range.
func New(binary string, compressionLevel int, verify bool, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("flac binary required")
	}
	if compressionLevel < 0 || compressionLevel > 8 {
		return nil, fmt.Errorf("invalid compression level %d", compressionLevel)
	}
	client := &Client{
		binary:           binary,
		compressionLevel: compressionLevel,
		verify:           verify,
		exec:             commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Encode converts one wav file into a tagged FLAC file.
func (c *Client) Encode(ctx context.Context, req Request, progress func(ProgressUpdate)) error {
	input := strings.TrimSpace(req.InputPath)
	if input == "" {
		return errors.New("input path required")
	}
	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		return errors.New("output path required")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	encodeCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		encodeCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"-" + strconv.Itoa(c.compressionLevel), "--force"}
	if c.verify {
		args = append(args, "--verify")
	}
	if picture := strings.TrimSpace(req.PicturePath); picture != "" {
		args = append(args, "--picture="+picture)
	}
	for _, tag := range req.Tags {
		args = append(args, fmt.Sprintf("--tag=%s=%s", tag.Key, tag.Value))
	}
	args = append(args, "--output-name="+output, input)

	if err := c.exec.Run(encodeCtx, c.binary, args, func(line string) {
		if progress == nil {
			return
		}
		if update, ok := parseProgress(line); ok {
			progress(update)
		}
	}); err != nil {
		return fmt.Errorf("flac encode: %w", err)
	}

	info, err := os.Stat(output)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("flac produced no output file")
	}
	if err != nil {
		return fmt.Errorf("inspect encode output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("flac produced an empty file")
	}
	return nil
}

// parseProgress extracts percentages from flac status lines of the form
// "track01.cdda.wav: 34% complete, ratio=0.543".
func parseProgress(line string) (ProgressUpdate, bool) {
	line = strings.TrimSpace(line)
	idx := strings.Index(line, "% complete")
	if idx < 0 {
		return ProgressUpdate{}, false
	}
	head := line[:idx]
	start := strings.LastIndexFunc(head, func(r rune) bool {
		return r < '0' || r > '9'
	})
	digits := head[start+1:]
	if digits == "" {
		return ProgressUpdate{}, false
	}
	percent, err := strconv.ParseFloat(digits, 64)
	if err != nil || percent < 0 || percent > 100 {
		return ProgressUpdate{}, false
	}
	return ProgressUpdate{Percent: percent, Message: line}, true
}
