package cdparanoia

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// samplesPerSector is the number of 16-bit samples in one Red Book sector.
// cdparanoia reports progress positions in samples.
const samplesPerSector = 1176

// ProgressUpdate captures cdparanoia progress output for one track.
type ProgressUpdate struct {
	Track   int
	Percent float64
	Message string
}

// Ripper defines the behaviour required by the ripping handler.
type Ripper interface {
	RipTrack(ctx context.Context, device string, track int, destPath string, progress func(ProgressUpdate)) error
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

// WithParanoiaDisabled turns off the paranoia verification layer. Rips run
// much faster but read errors go undetected; only useful for clean discs.
func WithParanoiaDisabled(disabled bool) Option {
	return func(c *Client) {
		c.disableParanoia = disabled
	}
}

// Client wraps cdparanoia CLI interactions.
type Client struct {
	binary          string
	ripTimeout      time.Duration
	disableParanoia bool
	exec            Executor
}

// New constructs a cdparanoia client.
func New(binary string, ripTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("cdparanoia binary required")
	}
	client := &Client{
		binary:     binary,
		ripTimeout: time.Duration(ripTimeoutSeconds) * time.Second,
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// RipTrack extracts one audio track to a wav file at destPath.
func (c *Client) RipTrack(ctx context.Context, device string, track int, destPath string, progress func(ProgressUpdate)) error {
	device = strings.TrimSpace(device)
	if device == "" {
		return errors.New("device path required")
	}
	if track < 1 {
		return fmt.Errorf("invalid track number %d", track)
	}
	destPath = strings.TrimSpace(destPath)
	if destPath == "" {
		return errors.New("destination path required")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	ripCtx := ctx
	if c.ripTimeout > 0 {
		var cancel context.CancelFunc
		ripCtx, cancel = context.WithTimeout(ctx, c.ripTimeout)
		defer cancel()
	}

	args := []string{"-w"}
	if c.disableParanoia {
		args = append(args, "-Z")
	}
	if progress != nil {
		args = append(args, "-e")
	}
	args = append(args, "--force-cdrom-device", device, strconv.Itoa(track), destPath)

	parser := &progressParser{track: track, emit: progress}
	if err := c.exec.Run(ripCtx, c.binary, args, parser.handle); err != nil {
		return fmt.Errorf("cdparanoia rip track %d: %w", track, err)
	}

	info, err := os.Stat(destPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cdparanoia produced no output file; check disc for read errors")
	}
	if err != nil {
		return fmt.Errorf("inspect rip output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("cdparanoia produced an empty file; check disc for read errors")
	}
	return nil
}

// progressParser tracks the sector span cdparanoia announces before reading
// and converts wrote positions into a percentage of the track.
type progressParser struct {
	track       int
	startSector int
	endSector   int
	emit        func(ProgressUpdate)
}

func (p *progressParser) handle(line string) {
	if p.emit == nil {
		return
	}
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "Ripping from sector"):
		if sector, ok := fieldAsInt(trimmed, 3); ok {
			p.startSector = sector
		}
	case strings.HasPrefix(trimmed, "to sector"):
		if sector, ok := fieldAsInt(trimmed, 2); ok {
			p.endSector = sector
		}
	case strings.HasPrefix(trimmed, "##:"):
		p.handleIndicator(trimmed)
	}
}

// handleIndicator parses stderr-progress lines of the form
// "##: -2 [wrote] @ 176400" where the position is in samples.
func (p *progressParser) handleIndicator(line string) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[2] != "[wrote]" {
		return
	}
	samples, err := strconv.Atoi(fields[4])
	if err != nil || samples < 0 {
		return
	}
	span := p.endSector - p.startSector + 1
	if span <= 0 {
		return
	}
	sector := samples / samplesPerSector
	percent := float64(sector-p.startSector) / float64(span) * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	p.emit(ProgressUpdate{
		Track:   p.track,
		Percent: percent,
		Message: fmt.Sprintf("Track %d: %.0f%%", p.track, percent),
	})
}

func fieldAsInt(line string, index int) (int, bool) {
	fields := strings.Fields(line)
	if index >= len(fields) {
		return 0, false
	}
	value, err := strconv.Atoi(fields[index])
	if err != nil {
		return 0, false
	}
	return value, true
}
