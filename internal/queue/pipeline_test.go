package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lidagrab/lidagrab/internal/fetch"
	"github.com/lidagrab/lidagrab/internal/fetch/mocks"
	"github.com/lidagrab/lidagrab/internal/lidarr"
	"github.com/lidagrab/lidagrab/internal/tagger"
)

type stubAlbumService struct {
	album     *lidarr.Album
	albumErr  error
	roots     []lidarr.RootFolder
	rootsErr  error
	rescanErr error
	rescanned [][]string
}

func (s *stubAlbumService) Album(ctx context.Context, id int64) (*lidarr.Album, error) {
	return s.album, s.albumErr
}

func (s *stubAlbumService) RootFolders(ctx context.Context) ([]lidarr.RootFolder, error) {
	return s.roots, s.rootsErr
}

func (s *stubAlbumService) RescanFolders(ctx context.Context, folders []string) error {
	s.rescanned = append(s.rescanned, folders)
	return s.rescanErr
}

type stubArtwork struct {
	lookup    []byte
	lookupErr error
	fetched   []byte
	fetchErr  error
}

func (s *stubArtwork) Lookup(ctx context.Context, artist, album string) ([]byte, error) {
	return s.lookup, s.lookupErr
}

func (s *stubArtwork) FetchURL(ctx context.Context, url string) ([]byte, error) {
	return s.fetched, s.fetchErr
}

type stubTagger struct {
	err  error
	tags []tagger.TrackTags
}

func (s *stubTagger) Tag(path string, tags tagger.TrackTags) error {
	s.tags = append(s.tags, tags)
	return s.err
}

func testAlbum() *lidarr.Album {
	return &lidarr.Album{
		ID:             10,
		Title:          "Abbey Road",
		ForeignAlbumID: "rg-mbid",
		ReleaseDate:    "1969-09-26",
		Artist: lidarr.Artist{
			ID:              3,
			ArtistName:      "The Beatles",
			ForeignArtistID: "artist-mbid",
		},
		Releases: []lidarr.Release{{
			ForeignReleaseID: "release-mbid",
			Country:          []string{"GB"},
			Label:            []string{"Apple"},
			Barcode:          "5099969944123",
		}},
		Images: []lidarr.Image{{CoverType: "cover", RemoteURL: "http://lidarr/cover.jpg"}},
		Tracks: []lidarr.Track{
			{ID: 1, Title: "Come Together", TrackNumber: "1", AbsoluteTrackNumber: 1, ForeignRecordingID: "rec-1", HasFile: false},
			{ID: 2, Title: "Something", TrackNumber: "2", AbsoluteTrackNumber: 2, ForeignRecordingID: "rec-2", HasFile: true},
			{ID: 3, Title: "Octopus's Garden", TrackNumber: "5", AbsoluteTrackNumber: 5, ForeignRecordingID: "rec-5", HasFile: false},
		},
	}
}

// expectDownload stubs a Download call that creates the output file the way
// yt-dlp would.
func expectDownload(f *mocks.MockFetcher, videoID string) {
	f.EXPECT().Download(gomock.Any(), videoID, gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, id, destPath string, progress func(fetch.Progress)) (string, error) {
			if progress != nil {
				progress(fetch.Progress{Percent: 50, Speed: "1MiB/s"})
			}
			out := destPath + ".mp3"
			if err := os.WriteFile(out, []byte("audio"), 0o644); err != nil {
				return "", err
			}
			return out, nil
		})
}

func newTestPipeline(t *testing.T, ls AlbumService, f fetch.Fetcher, tg TrackTagger, art ArtworkSource) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	cfg := PipelineConfig{
		Root:       root,
		ScratchDir: t.TempDir(),
	}
	return NewPipeline(ls, f, tg, art, cfg, nil), root
}

func TestPipeline_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)

	fetcher.EXPECT().Search(gomock.Any(), "The Beatles Come Together", 5).
		Return([]fetch.Candidate{{ID: "vid1", Title: "The Beatles - Come Together"}}, nil)
	expectDownload(fetcher, "vid1")
	fetcher.EXPECT().Search(gomock.Any(), "The Beatles Octopus's Garden", 5).
		Return([]fetch.Candidate{{ID: "vid2", Title: "The Beatles - Octopus's Garden"}}, nil)
	expectDownload(fetcher, "vid2")

	svc := &stubAlbumService{album: testAlbum()}
	tg := &stubTagger{}
	art := &stubArtwork{lookup: []byte{0xFF, 0xD8, 0xFF}}
	p, root := newTestPipeline(t, svc, fetcher, tg, art)

	var stages []string
	item := &Item{ID: 1, AlbumID: 10}
	result, err := p.Run(context.Background(), item, func(pr Progress) {
		stages = append(stages, pr.Stage)
	})
	require.NoError(t, err)
	assert.False(t, result.Degraded)

	albumDir := filepath.Join(root, "The Beatles", "Abbey Road")
	assert.Equal(t, albumDir, result.AlbumDir)
	assert.FileExists(t, filepath.Join(albumDir, "01 - Come Together.mp3"))
	assert.FileExists(t, filepath.Join(albumDir, "05 - Octopuss Garden.mp3"))
	assert.FileExists(t, filepath.Join(albumDir, "cover.jpg"))

	// Track with a file on disk is skipped
	assert.NoFileExists(t, filepath.Join(albumDir, "02 - Something.mp3"))

	require.Len(t, tg.tags, 2)
	tags := tg.tags[0]
	assert.Equal(t, "Come Together", tags.Title)
	assert.Equal(t, "The Beatles", tags.Artist)
	assert.Equal(t, "Abbey Road", tags.Album)
	assert.Equal(t, "1969", tags.Year)
	assert.Equal(t, 1, tags.TrackNumber)
	assert.Equal(t, 3, tags.TrackTotal)
	assert.Equal(t, "rec-1", tags.RecordingID)
	assert.Equal(t, "release-mbid", tags.ReleaseID)
	assert.Equal(t, "artist-mbid", tags.ArtistID)
	assert.Equal(t, "rg-mbid", tags.ReleaseGroupID)
	assert.Equal(t, "GB", tags.ReleaseCountry)
	assert.Equal(t, []string{"Apple"}, tags.Labels)
	assert.Equal(t, "5099969944123", tags.Barcode)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, tags.Artwork)

	require.Len(t, svc.rescanned, 1)
	assert.Equal(t, []string{filepath.Join(root, "The Beatles")}, svc.rescanned[0])

	assert.Contains(t, stages, string(StatusDownloading))
	assert.Contains(t, stages, string(StatusTagging))
	assert.Equal(t, string(StatusImporting), stages[len(stages)-1])
}

func TestPipeline_TagFailureDegrades(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]fetch.Candidate{{ID: "vid1", Title: "The Beatles - Come Together"}}, nil).Times(2)
	expectDownload(fetcher, "vid1")
	expectDownload(fetcher, "vid1")

	svc := &stubAlbumService{album: testAlbum()}
	tg := &stubTagger{err: fmt.Errorf("%w: bad header", tagger.ErrUnsupported)}
	p, root := newTestPipeline(t, svc, fetcher, tg, nil)

	result, err := p.Run(context.Background(), &Item{ID: 1, AlbumID: 10}, nil)
	require.NoError(t, err)
	assert.True(t, result.Degraded)

	// Untagged files still land in the library and the rescan still runs
	assert.FileExists(t, filepath.Join(root, "The Beatles", "Abbey Road", "01 - Come Together.mp3"))
	assert.Len(t, svc.rescanned, 1)
}

func TestPipeline_NoCandidateFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	svc := &stubAlbumService{album: testAlbum()}
	p, root := newTestPipeline(t, svc, fetcher, &stubTagger{}, nil)

	_, err := p.Run(context.Background(), &Item{ID: 1, AlbumID: 10}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetch.ErrNoCandidate)

	// No track file placed, no rescan
	entries, readErr := os.ReadDir(filepath.Join(root, "The Beatles", "Abbey Road"))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
	assert.Empty(t, svc.rescanned)
}

func TestPipeline_ManagerUnavailable(t *testing.T) {
	svc := &stubAlbumService{albumErr: fmt.Errorf("album/10: %w", lidarr.ErrUnavailable)}
	p, _ := newTestPipeline(t, svc, nil, &stubTagger{}, nil)

	_, err := p.Run(context.Background(), &Item{ID: 1, AlbumID: 10}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, lidarr.ErrUnavailable)
}

func TestPipeline_RootFolderFallback(t *testing.T) {
	root := t.TempDir()
	svc := &stubAlbumService{
		album: testAlbum(),
		roots: []lidarr.RootFolder{{Path: root}},
	}
	album := svc.album
	for i := range album.Tracks {
		album.Tracks[i].HasFile = true
	}

	p := NewPipeline(svc, nil, &stubTagger{}, nil, PipelineConfig{ScratchDir: t.TempDir()}, nil)

	result, err := p.Run(context.Background(), &Item{ID: 1, AlbumID: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "The Beatles", "Abbey Road"), result.AlbumDir)
	assert.DirExists(t, result.AlbumDir)
}

func TestPipeline_NoRootFolders(t *testing.T) {
	svc := &stubAlbumService{album: testAlbum()}
	p := NewPipeline(svc, nil, &stubTagger{}, nil, PipelineConfig{ScratchDir: t.TempDir()}, nil)

	_, err := p.Run(context.Background(), &Item{ID: 1, AlbumID: 10}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, lidarr.ErrUnavailable)
}

func TestPipeline_ArtworkFallbackToManagerURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]fetch.Candidate{{ID: "vid1", Title: "The Beatles - Come Together"}}, nil).Times(2)
	expectDownload(fetcher, "vid1")
	expectDownload(fetcher, "vid1")

	svc := &stubAlbumService{album: testAlbum()}
	tg := &stubTagger{}
	art := &stubArtwork{lookupErr: errors.New("no artwork found"), fetched: []byte("managerimage")}
	p, root := newTestPipeline(t, svc, fetcher, tg, art)

	result, err := p.Run(context.Background(), &Item{ID: 1, AlbumID: 10}, nil)
	require.NoError(t, err)
	assert.False(t, result.Degraded)

	cover, readErr := os.ReadFile(filepath.Join(root, "The Beatles", "Abbey Road", "cover.jpg"))
	require.NoError(t, readErr)
	assert.Equal(t, []byte("managerimage"), cover)
	assert.Equal(t, []byte("managerimage"), tg.tags[0].Artwork)
}

func TestPipeline_ArtworkMissIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]fetch.Candidate{{ID: "vid1", Title: "The Beatles - Come Together"}}, nil).Times(2)
	expectDownload(fetcher, "vid1")
	expectDownload(fetcher, "vid1")

	svc := &stubAlbumService{album: testAlbum()}
	art := &stubArtwork{lookupErr: errors.New("no artwork found"), fetchErr: errors.New("no artwork found")}
	p, root := newTestPipeline(t, svc, fetcher, &stubTagger{}, art)

	result, err := p.Run(context.Background(), &Item{ID: 1, AlbumID: 10}, nil)
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.NoFileExists(t, filepath.Join(root, "The Beatles", "Abbey Road", "cover.jpg"))
}
