// Package tagger writes ID3v2.4 tags on downloaded MP3 files, including the
// MusicBrainz identifiers Lidarr's import matcher keys on.
package tagger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
)

// ErrUnsupported is returned when the audio container cannot be opened or
// parsed for tagging. Callers treat this as a degraded outcome, not a
// pipeline failure: an untagged download is still worth importing.
var ErrUnsupported = errors.New("unsupported audio file")

// TrackTags is everything written onto one file.
type TrackTags struct {
	Title       string
	Artist      string
	Album       string
	Year        string
	TrackNumber int
	TrackTotal  int

	// MusicBrainz identifiers, embedded so the manager's import matcher
	// accepts the file without manual intervention.
	RecordingID    string
	ReleaseID      string
	ArtistID       string
	ReleaseGroupID string
	ReleaseCountry string
	Labels         []string
	Barcode        string

	// Artwork is JPEG cover data; nil skips the picture frame.
	Artwork []byte
}

// Tagger writes tags in-place.
type Tagger struct {
	log *slog.Logger
}

// New creates a Tagger.
func New(log *slog.Logger) *Tagger {
	if log == nil {
		log = slog.Default()
	}
	return &Tagger{log: log.With("component", "tagger")}
}

// Tag writes all fields onto the file at path. Re-tagging an already-tagged
// file overwrites prior values rather than duplicating frames.
func (t *Tagger) Tag(path string, tags TrackTags) error {
	file, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnsupported, path, err)
	}
	defer func() { _ = file.Close() }()

	file.SetVersion(4)
	file.SetDefaultEncoding(id3v2.EncodingUTF8)

	// Multi-valued frame kinds accumulate on repeated Add; clear them so
	// Tag stays idempotent.
	file.DeleteFrames("TXXX")
	file.DeleteFrames("UFID")
	file.DeleteFrames("APIC")

	file.SetTitle(tags.Title)
	file.SetArtist(tags.Artist)
	file.SetAlbum(tags.Album)
	if tags.Year != "" {
		file.AddTextFrame("TDRC", id3v2.EncodingUTF8, tags.Year)
	}
	// Album artist mirrors the track artist for single-artist albums.
	file.AddTextFrame("TPE2", id3v2.EncodingUTF8, tags.Artist)
	if tags.TrackNumber > 0 {
		file.AddTextFrame("TRCK", id3v2.EncodingUTF8, fmt.Sprintf("%d/%d", tags.TrackNumber, tags.TrackTotal))
	}

	t.addMusicBrainz(file, tags)

	if len(tags.Artwork) > 0 {
		file.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     tags.Artwork,
		})
	}

	if err := file.Save(); err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrUnsupported, path, err)
	}

	t.log.Debug("tagged file", "path", path, "title", tags.Title, "track", tags.TrackNumber)
	return nil
}

func (t *Tagger) addMusicBrainz(file *id3v2.Tag, tags TrackTags) {
	addTXXX := func(desc, value string) {
		if value == "" {
			return
		}
		file.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: desc,
			Value:       value,
		})
	}

	addTXXX("MusicBrainz Release Track Id", tags.RecordingID)
	addTXXX("MusicBrainz Album Id", tags.ReleaseID)
	addTXXX("MusicBrainz Artist Id", tags.ArtistID)
	addTXXX("MusicBrainz Album Release Group Id", tags.ReleaseGroupID)
	addTXXX("MusicBrainz Release Country", tags.ReleaseCountry)
	addTXXX("Media", "Digital Media")
	if len(tags.Labels) > 0 {
		addTXXX("LABEL", strings.Join(tags.Labels, ","))
	}
	addTXXX("BARCODE", tags.Barcode)

	if tags.RecordingID != "" {
		file.AddUFIDFrame(id3v2.UFIDFrame{
			OwnerIdentifier: "http://musicbrainz.org",
			Identifier:      []byte(tags.RecordingID),
		})
	}
}
