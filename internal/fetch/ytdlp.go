package fetch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// progressTemplate makes yt-dlp emit one "<percent>|<speed>" line per update.
const progressTemplate = "download:%(progress._percent_str)s|%(progress._speed_str)s"

// Option configures the CLI fetcher.
type Option func(*YTDLP)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(y *YTDLP) {
		if binary != "" {
			y.binary = binary
		}
	}
}

// WithQuality sets the target audio quality passed to --audio-quality
// (e.g. "320K"). Defaults to "320K".
func WithQuality(quality string) Option {
	return func(y *YTDLP) {
		if quality != "" {
			y.quality = quality
		}
	}
}

// YTDLP wraps the yt-dlp command-line downloader.
type YTDLP struct {
	binary  string
	quality string
}

// NewYTDLP constructs a CLI fetcher using defaults.
func NewYTDLP(opts ...Option) *YTDLP {
	y := &YTDLP{binary: "yt-dlp", quality: "320K"}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Search runs a platform search and returns candidates in result order.
func (y *YTDLP) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 5
	}

	args := []string{
		fmt.Sprintf("ytsearch%d:%s", limit, query),
		"--skip-download",
		"--no-warnings",
		"--print", "%(id)s\t%(title)s\t%(duration)s",
	}

	cmd := commandContext(ctx, y.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("%w: search: %s", ErrToolFailed, firstLine(stderr.String()))
	}

	var candidates []Candidate
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), "\t", 3)
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		c := Candidate{ID: parts[0], Title: parts[1]}
		if len(parts) == 3 {
			if d, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil {
				c.Duration = int(d)
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Download fetches the audio for videoID, converting to MP3 at destPath.
// Returns the path of the produced file (destPath + ".mp3").
func (y *YTDLP) Download(ctx context.Context, videoID, destPath string, progress func(Progress)) (string, error) {
	args := []string{
		"https://www.youtube.com/watch?v=" + videoID,
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", y.quality,
		"--no-warnings",
		"--newline",
		"--progress-template", progressTemplate,
		"-o", destPath + ".%(ext)s",
	}

	cmd := commandContext(ctx, y.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: start: %v", ErrToolFailed, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if p, ok := parseProgress(scanner.Text()); ok && progress != nil {
			progress(p)
		}
	}

	if err := cmd.Wait(); err != nil {
		y.removePartials(destPath)
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("%w: %s", ErrToolFailed, firstLine(stderr.String()))
	}

	produced := destPath + ".mp3"
	if _, err := os.Stat(produced); err != nil {
		return "", fmt.Errorf("%w: no output file at %s", ErrToolFailed, produced)
	}
	return produced, nil
}

// removePartials deletes anything yt-dlp left behind for this destination,
// including .part and intermediate container files.
func (y *YTDLP) removePartials(destPath string) {
	matches, err := filepath.Glob(destPath + ".*")
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

// parseProgress understands "<percent>%|<speed>" lines produced by
// progressTemplate. Anything else is tool noise and skipped.
func parseProgress(line string) (Progress, bool) {
	percentPart, speedPart, ok := strings.Cut(line, "|")
	if !ok {
		return Progress{}, false
	}
	percentPart = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(percentPart), "%"))
	percent, err := strconv.ParseFloat(percentPart, 64)
	if err != nil {
		return Progress{}, false
	}
	return Progress{Percent: percent, Speed: strings.TrimSpace(speedPart)}, true
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		s = "exit status non-zero"
	}
	return s
}

var _ Fetcher = (*YTDLP)(nil)
