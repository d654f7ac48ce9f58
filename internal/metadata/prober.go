package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"musiclib/internal/logging"
	"musiclib/pkg/models"

	"github.com/dhowden/tag"
	"github.com/sirupsen/logrus"
)

// DefaultDuration is recorded when no duration could be determined.
const DefaultDuration = 180

// Info is what a Prober learned about an uploaded file.
type Info struct {
	Title    string // empty when the file carries no title tag
	Artist   string
	Album    string
	Duration int // seconds
}

// Prober inspects a staged upload before it is recorded.
type Prober interface {
	Probe(path string) (Info, error)
}

// StubProber never reads the file; it returns the configured defaults.
type StubProber struct {
	Artist   string
	Duration int
}

// NewStubProber returns a StubProber, filling zero values with the package
// defaults.
func NewStubProber(artist string, duration int) StubProber {
	if artist == "" {
		artist = models.DefaultArtist
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return StubProber{Artist: artist, Duration: duration}
}

// Probe returns the defaults.
func (p StubProber) Probe(string) (Info, error) {
	return Info{Artist: p.Artist, Duration: p.Duration}, nil
}

// HeaderProber reads tags and computes durations from audio headers. Whatever
// it cannot determine falls back to the stub values.
type HeaderProber struct {
	fallback StubProber
	logger   *logrus.Logger
}

// NewHeaderProber creates a HeaderProber.
func NewHeaderProber(fallback StubProber, logger *logrus.Logger) *HeaderProber {
	if logger == nil {
		logger = logging.Discard()
	}
	return &HeaderProber{fallback: fallback, logger: logger}
}

// Probe extracts title, artist, album and duration from the file at path.
// Only failing to open the file is an error.
func (p *HeaderProber) Probe(path string) (Info, error) {
	startTime := time.Now()
	info, _ := p.fallback.Probe(path)

	file, err := os.Open(path)
	if err != nil {
		return info, err
	}
	defer file.Close()

	if duration, err := calculateDuration(path); err != nil {
		p.logger.WithFields(logrus.Fields{
			"file":  filepath.Base(path),
			"error": err.Error(),
		}).Warn("Failed to calculate duration, using default")
	} else if duration > 0 {
		info.Duration = duration
	}

	tags, err := tag.ReadFrom(file)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"file":  filepath.Base(path),
			"error": err.Error(),
		}).Debug("No readable tags")
		return info, nil
	}

	info.Title = strings.TrimSpace(tags.Title())
	if artist := strings.TrimSpace(tags.Artist()); artist != "" {
		info.Artist = artist
	}
	info.Album = strings.TrimSpace(tags.Album())

	p.logger.WithFields(logrus.Fields{
		"file":           filepath.Base(path),
		"title":          info.Title,
		"artist":         info.Artist,
		"album":          info.Album,
		"duration":       info.Duration,
		"processingTime": time.Since(startTime),
	}).Debug("Probed metadata")

	return info, nil
}
