package disc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// framesPerSecond is the Red Book audio CD frame rate.
const framesPerSecond = 75

// leadInFrames is the standard offset of the first track on an audio CD.
const leadInFrames = 150

// TOC describes an audio CD table of contents as reported by cd-discid.
type TOC struct {
	FreeDBID     string `json:"freedb_id"`
	FirstTrack   int    `json:"first_track"`
	LastTrack    int    `json:"last_track"`
	TrackOffsets []int  `json:"track_offsets"`
	TotalSeconds int    `json:"total_seconds"`
}

// TrackCount returns the number of audio tracks on the disc.
func (t TOC) TrackCount() int {
	return len(t.TrackOffsets)
}

// LeadoutFrames returns the frame offset of the disc lead-out.
func (t TOC) LeadoutFrames() int {
	return t.TotalSeconds*framesPerSecond + leadInFrames
}

// TrackLength returns the duration of a 1-based track number.
func (t TOC) TrackLength(number int) time.Duration {
	idx := number - t.FirstTrack
	if idx < 0 || idx >= len(t.TrackOffsets) {
		return 0
	}
	end := t.LeadoutFrames()
	if idx+1 < len(t.TrackOffsets) {
		end = t.TrackOffsets[idx+1]
	}
	frames := end - t.TrackOffsets[idx]
	if frames < 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / framesPerSecond
}

// CanonicalString renders the TOC in the exact form cd-discid emits it. The
// string doubles as the disc fingerprint input, so its shape must stay stable.
func (t TOC) CanonicalString() string {
	parts := make([]string, 0, len(t.TrackOffsets)+3)
	parts = append(parts, t.FreeDBID, strconv.Itoa(t.TrackCount()))
	for _, offset := range t.TrackOffsets {
		parts = append(parts, strconv.Itoa(offset))
	}
	parts = append(parts, strconv.Itoa(t.TotalSeconds))
	return strings.Join(parts, " ")
}

// ParseTOC parses one line of cd-discid output: the FreeDB disc ID, the track
// count, one frame offset per track, and the total disc length in seconds.
func ParseTOC(output string) (TOC, error) {
	fields := strings.Fields(strings.TrimSpace(output))
	if len(fields) < 4 {
		return TOC{}, fmt.Errorf("short cd-discid output %q", output)
	}

	count, err := strconv.Atoi(fields[1])
	if err != nil || count <= 0 {
		return TOC{}, fmt.Errorf("invalid track count %q", fields[1])
	}
	if len(fields) != count+3 {
		return TOC{}, fmt.Errorf("expected %d fields for %d tracks, got %d", count+3, count, len(fields))
	}

	offsets := make([]int, 0, count)
	for _, field := range fields[2 : 2+count] {
		offset, err := strconv.Atoi(field)
		if err != nil || offset < 0 {
			return TOC{}, fmt.Errorf("invalid track offset %q", field)
		}
		offsets = append(offsets, offset)
	}

	seconds, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || seconds <= 0 {
		return TOC{}, fmt.Errorf("invalid disc length %q", fields[len(fields)-1])
	}

	return TOC{
		FreeDBID:     fields[0],
		FirstTrack:   1,
		LastTrack:    count,
		TrackOffsets: offsets,
		TotalSeconds: seconds,
	}, nil
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// TOCReader reads the table of contents from an inserted audio CD.
type TOCReader interface {
	ReadTOC(ctx context.Context, device string) (TOC, error)
}

// ReaderOption configures the TOC reader.
type ReaderOption func(*Reader)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) ReaderOption {
	return func(r *Reader) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Reader shells out to cd-discid for TOC data.
type Reader struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// NewReader constructs a TOC reader around the cd-discid binary.
func NewReader(binary string, timeoutSeconds int, opts ...ReaderOption) (*Reader, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("cd-discid binary required")
	}
	reader := &Reader{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(reader)
	}
	return reader, nil
}

// ReadTOC invokes cd-discid against the device and parses its output.
func (r *Reader) ReadTOC(ctx context.Context, device string) (TOC, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return TOC{}, errors.New("device path required")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var lines []string
	if err := r.exec.Run(ctx, r.binary, []string{device}, func(line string) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}); err != nil {
		return TOC{}, fmt.Errorf("read disc toc: %w", err)
	}
	if len(lines) == 0 {
		return TOC{}, errors.New("cd-discid produced no output")
	}

	return ParseTOC(lines[len(lines)-1])
}
