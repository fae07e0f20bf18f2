package flacenc_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"platter/internal/metadata"
	"platter/internal/services/flacenc"
)

type fakeExecutor struct {
	lines      []string
	err        error
	writeBytes []byte

	gotBinary string
	gotArgs   []string
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string, onStdout func(string)) error {
	f.gotBinary = binary
	f.gotArgs = args
	for _, line := range f.lines {
		if onStdout != nil {
			onStdout(line)
		}
	}
	if f.err != nil {
		return f.err
	}
	if f.writeBytes != nil {
		for _, arg := range args {
			if strings.HasPrefix(arg, "--output-name=") {
				dest := strings.TrimPrefix(arg, "--output-name=")
				if err := os.WriteFile(dest, f.writeBytes, 0o644); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func TestEncodeBuildsArguments(t *testing.T) {
	exec := &fakeExecutor{writeBytes: []byte("fLaC")}
	client, err := flacenc.New("flac", 8, true, flacenc.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "track01.cdda.wav")
	output := filepath.Join(dir, "01 - Opening Song.flac")
	req := flacenc.Request{
		InputPath:   input,
		OutputPath:  output,
		PicturePath: filepath.Join(dir, "cover.jpg"),
		Tags: []metadata.Tag{
			{Key: "ARTIST", Value: "The Band"},
			{Key: "TITLE", Value: "Opening Song"},
		},
	}
	if err := client.Encode(context.Background(), req, nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []string{
		"-8",
		"--force",
		"--verify",
		"--picture=" + req.PicturePath,
		"--tag=ARTIST=The Band",
		"--tag=TITLE=Opening Song",
		"--output-name=" + output,
		input,
	}
	if len(exec.gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", exec.gotArgs, want)
	}
	for i, arg := range want {
		if exec.gotArgs[i] != arg {
			t.Fatalf("args[%d] = %q, want %q", i, exec.gotArgs[i], arg)
		}
	}
}

func TestEncodeOmitsOptionalArguments(t *testing.T) {
	exec := &fakeExecutor{writeBytes: []byte("fLaC")}
	client, err := flacenc.New("flac", 5, false, flacenc.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	req := flacenc.Request{
		InputPath:  filepath.Join(dir, "track01.cdda.wav"),
		OutputPath: filepath.Join(dir, "01 - Track.flac"),
	}
	if err := client.Encode(context.Background(), req, nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if exec.gotArgs[0] != "-5" {
		t.Fatalf("expected compression level arg, got %q", exec.gotArgs[0])
	}
	for _, arg := range exec.gotArgs {
		if arg == "--verify" {
			t.Fatal("did not expect --verify")
		}
		if strings.HasPrefix(arg, "--picture=") {
			t.Fatal("did not expect --picture")
		}
	}
}

func TestEncodeReportsProgress(t *testing.T) {
	exec := &fakeExecutor{
		writeBytes: []byte("fLaC"),
		lines: []string{
			"track01.cdda.wav: 34% complete, ratio=0.512",
			"track01.cdda.wav: 100% complete, ratio=0.507",
			"noise",
		},
	}
	client, err := flacenc.New("flac", 8, true, flacenc.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	var percents []float64
	req := flacenc.Request{
		InputPath:  filepath.Join(dir, "track01.cdda.wav"),
		OutputPath: filepath.Join(dir, "01 - Track.flac"),
	}
	if err := client.Encode(context.Background(), req, func(update flacenc.ProgressUpdate) {
		percents = append(percents, update.Percent)
	}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(percents) != 2 || percents[0] != 34 || percents[1] != 100 {
		t.Fatalf("unexpected progress: %v", percents)
	}
}

func TestEncodeFailsWithoutOutput(t *testing.T) {
	client, err := flacenc.New("flac", 8, true, flacenc.WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	req := flacenc.Request{
		InputPath:  filepath.Join(dir, "track01.cdda.wav"),
		OutputPath: filepath.Join(dir, "01 - Track.flac"),
	}
	if err := client.Encode(context.Background(), req, nil); err == nil {
		t.Fatal("expected error when no output file was produced")
	}
}

func TestEncodeWrapsExecutorErrors(t *testing.T) {
	want := errors.New("verify mismatch")
	client, err := flacenc.New("flac", 8, true, flacenc.WithExecutor(&fakeExecutor{err: want}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	req := flacenc.Request{
		InputPath:  filepath.Join(dir, "track01.cdda.wav"),
		OutputPath: filepath.Join(dir, "01 - Track.flac"),
	}
	if got := client.Encode(context.Background(), req, nil); !errors.Is(got, want) {
		t.Fatalf("expected wrapped executor error, got %v", got)
	}
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := flacenc.New("", 8, true); err == nil {
		t.Fatal("expected error for empty binary")
	}
	if _, err := flacenc.New("flac", 9, true); err == nil {
		t.Fatal("expected error for out-of-range compression level")
	}
	if _, err := flacenc.New("flac", -1, true); err == nil {
		t.Fatal("expected error for negative compression level")
	}
}
