// Package fetch wraps the yt-dlp command-line tool: searching the video
// platform for audio candidates and downloading the selected one into a
// scratch directory with live progress reporting.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/lidagrab/lidagrab/internal/match"
)

// Sentinel errors for the fetch package.
var (
	// ErrNoCandidate is returned when the search yields nothing usable,
	// including the case where every result was filtered out.
	ErrNoCandidate = errors.New("no download candidate found")

	// ErrToolFailed is returned when yt-dlp exits non-zero.
	ErrToolFailed = errors.New("fetch tool failed")

	// ErrCancelled is returned when the download was cancelled by the
	// caller's context. It marks a cancelled outcome, not a failure.
	ErrCancelled = errors.New("fetch cancelled")
)

// Progress is a single progress update parsed from the tool output.
type Progress struct {
	Percent float64
	Speed   string
}

// Candidate is one search result.
type Candidate struct {
	ID       string
	Title    string
	Duration int // seconds, 0 when unknown
}

// Fetcher searches the platform and downloads audio.
type Fetcher interface {
	// Search returns up to limit candidates for a free-text query.
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)

	// Download fetches the audio stream for a video and converts it to MP3
	// at destPath (extension added by the tool). progress is invoked on
	// every update line; it may be nil. On context cancellation partial
	// files are removed and ErrCancelled is returned.
	Download(ctx context.Context, videoID, destPath string, progress func(Progress)) (string, error)
}

// Select picks the best candidate for query, applying the forbidden-word
// denylist before fuzzy matching.
func Select(query string, candidates []Candidate, forbidden []string) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, fmt.Errorf("%w: empty search result for %q", ErrNoCandidate, query)
	}

	kept := make([]Candidate, 0, len(candidates))
	titles := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if match.ContainsForbiddenWord(c.Title, forbidden) {
			continue
		}
		kept = append(kept, c)
		titles = append(titles, c.Title)
	}
	if len(kept) == 0 {
		return Candidate{}, fmt.Errorf("%w: all %d results matched forbidden words for %q", ErrNoCandidate, len(candidates), query)
	}

	best, ok := match.BestCandidate(query, titles)
	if !ok {
		return Candidate{}, fmt.Errorf("%w: no result similar enough to %q", ErrNoCandidate, query)
	}
	return kept[best.Index], nil
}
