package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lidagrab/lidagrab/internal/fetch"
	"github.com/lidagrab/lidagrab/internal/lidarr"
	"github.com/lidagrab/lidagrab/internal/match"
	"github.com/lidagrab/lidagrab/internal/tagger"
)

// AlbumService is the slice of the Lidarr client the pipeline needs.
type AlbumService interface {
	Album(ctx context.Context, id int64) (*lidarr.Album, error)
	RootFolders(ctx context.Context) ([]lidarr.RootFolder, error)
	RescanFolders(ctx context.Context, folders []string) error
}

// ArtworkSource locates album cover images.
type ArtworkSource interface {
	Lookup(ctx context.Context, artist, album string) ([]byte, error)
	FetchURL(ctx context.Context, url string) ([]byte, error)
}

// TrackTagger writes tags onto a downloaded file.
type TrackTagger interface {
	Tag(path string, tags tagger.TrackTags) error
}

// PipelineConfig carries the file-placement settings.
type PipelineConfig struct {
	// Root is the library root. Empty means use the first root folder
	// Lidarr reports.
	Root           string
	ScratchDir     string
	ForbiddenWords []string
	FileMode       os.FileMode
	DirMode        os.FileMode
	SearchLimit    int
}

// Result is what a successful pipeline run produced.
type Result struct {
	AlbumDir  string
	ArtistDir string
	// Degraded is set when one or more tracks could not be tagged but
	// were imported anyway.
	Degraded bool
}

// Pipeline downloads one album end to end: album detail, artwork, per-track
// search/download/tag, placement into the library, and the rescan command.
type Pipeline struct {
	lidarr  AlbumService
	fetcher fetch.Fetcher
	tagger  TrackTagger
	artwork ArtworkSource // may be nil
	cfg     PipelineConfig
	log     *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(ls AlbumService, f fetch.Fetcher, tg TrackTagger, art ArtworkSource, cfg PipelineConfig, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.SearchLimit == 0 {
		cfg.SearchLimit = 5
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	return &Pipeline{
		lidarr:  ls,
		fetcher: f,
		tagger:  tg,
		artwork: art,
		cfg:     cfg,
		log:     log.With("component", "pipeline"),
	}
}

// Run processes one item. report is invoked with live progress under no lock;
// it must be fast. Cancellation arrives through ctx and surfaces as
// fetch.ErrCancelled.
func (p *Pipeline) Run(ctx context.Context, item *Item, report func(Progress)) (*Result, error) {
	if report == nil {
		report = func(Progress) {}
	}

	album, err := p.lidarr.Album(ctx, item.AlbumID)
	if err != nil {
		return nil, fmt.Errorf("album detail: %w", err)
	}

	root := p.cfg.Root
	if root == "" {
		folders, err := p.lidarr.RootFolders(ctx)
		if err != nil {
			return nil, fmt.Errorf("root folders: %w", err)
		}
		if len(folders) == 0 {
			return nil, fmt.Errorf("%w: no root folders configured", lidarr.ErrUnavailable)
		}
		root = folders[0].Path
	}

	artist := album.Artist.ArtistName
	artistDir := filepath.Join(root, match.SanitizeFilename(artist))
	albumDir := filepath.Join(artistDir, match.SanitizeFilename(album.Title))
	if err := os.MkdirAll(albumDir, p.cfg.DirMode); err != nil {
		return nil, fmt.Errorf("create album dir: %w", err)
	}

	cover := p.fetchArtwork(ctx, album, albumDir)

	missing := missingTracks(album)
	if len(missing) == 0 {
		p.log.Info("album has no missing tracks", "album_id", album.ID, "title", album.Title)
		return &Result{AlbumDir: albumDir, ArtistDir: artistDir}, nil
	}

	res := &Result{AlbumDir: albumDir, ArtistDir: artistDir}
	total := len(missing)
	for i, track := range missing {
		trackNo := trackNumber(track, i)
		if err := p.runTrack(ctx, album, track, trackNo, albumDir, cover, i+1, total, report, res); err != nil {
			return nil, err
		}
	}

	report(Progress{Stage: string(StatusImporting), Percent: 100, Track: total, Tracks: total})
	if err := p.lidarr.RescanFolders(ctx, []string{artistDir}); err != nil {
		return nil, fmt.Errorf("rescan: %w", err)
	}

	return res, nil
}

// runTrack searches, downloads, tags, and places a single track.
func (p *Pipeline) runTrack(ctx context.Context, album *lidarr.Album, track lidarr.Track, trackNo int,
	albumDir string, cover []byte, idx, total int, report func(Progress), res *Result) error {

	artist := album.Artist.ArtistName
	query := artist + " " + track.Title

	report(Progress{Stage: string(StatusDownloading), Track: idx, Tracks: total})

	candidates, err := p.fetcher.Search(ctx, query, p.cfg.SearchLimit)
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	cand, err := fetch.Select(query, candidates, p.cfg.ForbiddenWords)
	if err != nil {
		return err
	}

	base := fmt.Sprintf("%02d - %s", trackNo, match.SanitizeFilename(track.Title))
	scratchPath := filepath.Join(p.cfg.ScratchDir, base)
	downloaded, err := p.fetcher.Download(ctx, cand.ID, scratchPath, func(fp fetch.Progress) {
		report(Progress{
			Stage:   string(StatusDownloading),
			Percent: fp.Percent,
			Speed:   fp.Speed,
			Track:   idx,
			Tracks:  total,
		})
	})
	if err != nil {
		return fmt.Errorf("download %q: %w", query, err)
	}

	report(Progress{Stage: string(StatusTagging), Percent: 100, Track: idx, Tracks: total})
	tags := buildTags(album, track, trackNo, len(album.Tracks), cover)
	if err := p.tagger.Tag(downloaded, tags); err != nil {
		// Untagged audio is still worth importing.
		p.log.Warn("tagging failed, importing untagged", "track", track.Title, "error", err)
		res.Degraded = true
	}

	dest := filepath.Join(albumDir, base+".mp3")
	if err := p.place(downloaded, dest); err != nil {
		return fmt.Errorf("place %q: %w", base, err)
	}
	return nil
}

// fetchArtwork returns cover bytes, trying iTunes first and falling back to
// the cover URL Lidarr reports. Best-effort: a miss returns nil. On success
// the image is also written as cover.jpg next to the tracks.
func (p *Pipeline) fetchArtwork(ctx context.Context, album *lidarr.Album, albumDir string) []byte {
	if p.artwork == nil {
		return nil
	}

	data, err := p.artwork.Lookup(ctx, album.Artist.ArtistName, album.Title)
	if err != nil {
		p.log.Debug("itunes artwork miss", "album", album.Title, "error", err)
		for _, img := range album.Images {
			if img.CoverType == "cover" && img.RemoteURL != "" {
				data, err = p.artwork.FetchURL(ctx, img.RemoteURL)
				if err != nil {
					p.log.Debug("manager artwork miss", "album", album.Title, "error", err)
					data = nil
				}
				break
			}
		}
	}
	if data == nil {
		return nil
	}

	coverPath := filepath.Join(albumDir, "cover.jpg")
	if err := os.WriteFile(coverPath, data, p.cfg.FileMode); err != nil {
		p.log.Warn("write cover failed", "path", coverPath, "error", err)
	}
	return data
}

// place moves a finished file into the library, falling back to copy+remove
// when scratch and library sit on different filesystems.
func (p *Pipeline) place(src, dest string) error {
	if err := os.Rename(src, dest); err != nil {
		if err := copyFile(src, dest); err != nil {
			return err
		}
		_ = os.Remove(src)
	}
	return os.Chmod(dest, p.cfg.FileMode)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy content: %w", err)
	}
	return out.Sync()
}

func buildTags(album *lidarr.Album, track lidarr.Track, trackNo, total int, cover []byte) tagger.TrackTags {
	tags := tagger.TrackTags{
		Title:       track.Title,
		Artist:      album.Artist.ArtistName,
		Album:       album.Title,
		TrackNumber: trackNo,
		TrackTotal:  total,
		RecordingID: track.ForeignRecordingID,
		ArtistID:    album.Artist.ForeignArtistID,
		Artwork:     cover,
	}
	if len(album.ReleaseDate) >= 4 {
		tags.Year = album.ReleaseDate[:4]
	}
	tags.ReleaseGroupID = album.ForeignAlbumID
	if len(album.Releases) > 0 {
		rel := album.Releases[0]
		tags.ReleaseID = rel.ForeignReleaseID
		tags.Labels = rel.Label
		tags.Barcode = rel.Barcode
		if len(rel.Country) > 0 {
			tags.ReleaseCountry = rel.Country[0]
		}
	}
	return tags
}

func missingTracks(album *lidarr.Album) []lidarr.Track {
	var missing []lidarr.Track
	for _, t := range album.Tracks {
		if !t.HasFile {
			missing = append(missing, t)
		}
	}
	return missing
}

func trackNumber(track lidarr.Track, idx int) int {
	if track.AbsoluteTrackNumber > 0 {
		return track.AbsoluteTrackNumber
	}
	if n, err := strconv.Atoi(track.TrackNumber); err == nil && n > 0 {
		return n
	}
	return idx + 1
}
