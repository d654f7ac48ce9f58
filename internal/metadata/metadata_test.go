package metadata

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"musiclib/internal/logging"
	"musiclib/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes a 16-bit mono PCM file of the given length.
func writeWAV(t *testing.T, path string, sampleRate, seconds int) {
	t.Helper()
	dataSize := sampleRate * 2 * seconds

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func atom(kind string, payload []byte) []byte {
	out := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(payload)))
	copy(out[4:8], kind)
	return append(out, payload...)
}

func TestContentType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".mp3", "audio/mpeg"},
		{"MP3", "audio/mpeg"},
		{".mp4", "video/mp4"},
		{".m4a", "audio/mp4"},
		{".wav", "audio/wav"},
		{".FLAC", "audio/flac"},
		{".ogg", "audio/ogg"},
		{".xyz", FallbackContentType},
		{"", FallbackContentType},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentType(tt.ext))
		})
	}
	assert.Equal(t, "audio/ogg", ContentTypeForFile("take_1700000000.OGG"))
}

func TestStubProber(t *testing.T) {
	info, err := NewStubProber("", 0).Probe("/does/not/matter.mp3")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultArtist, info.Artist)
	assert.Equal(t, DefaultDuration, info.Duration)
	assert.Empty(t, info.Album)
	assert.Empty(t, info.Title)

	info, _ = NewStubProber("Someone", 42).Probe("x.mp3")
	assert.Equal(t, "Someone", info.Artist)
	assert.Equal(t, 42, info.Duration)
}

func TestDurationWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 8000, 3)

	d, err := calculateDuration(path)
	require.NoError(t, err)
	assert.Equal(t, 3, d)
}

func TestDurationMP4(t *testing.T) {
	mvhd := make([]byte, 4+16)
	binary.BigEndian.PutUint32(mvhd[12:16], 1000)   // timescale
	binary.BigEndian.PutUint32(mvhd[16:20], 125000) // duration

	var file []byte
	file = append(file, atom("ftyp", []byte("M4A \x00\x00\x00\x00"))...)
	file = append(file, atom("moov", append(atom("udta", nil), atom("mvhd", mvhd)...))...)

	path := filepath.Join(t.TempDir(), "clip.m4a")
	require.NoError(t, os.WriteFile(path, file, 0644))

	d, err := calculateDuration(path)
	require.NoError(t, err)
	assert.Equal(t, 125, d)
}

func TestDurationMP4MissingMoov(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.m4a")
	require.NoError(t, os.WriteFile(path, atom("ftyp", []byte("M4A ")), 0644))

	_, err := calculateDuration(path)
	assert.Error(t, err)
}

func TestDurationUnsupported(t *testing.T) {
	_, err := calculateDuration("voice.ogg")
	assert.Error(t, err)
}

func TestHeaderProberReadsWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 8000, 2)

	prober := NewHeaderProber(NewStubProber("", 0), logging.Discard())
	info, err := prober.Probe(path)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Duration)
	assert.Equal(t, models.DefaultArtist, info.Artist)
}

func TestHeaderProberFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.mp3")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0644))

	prober := NewHeaderProber(NewStubProber("", 0), nil)
	info, err := prober.Probe(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultDuration, info.Duration)
	assert.Equal(t, models.DefaultArtist, info.Artist)
}

func TestHeaderProberMissingFile(t *testing.T) {
	prober := NewHeaderProber(NewStubProber("", 0), nil)
	_, err := prober.Probe(filepath.Join(t.TempDir(), "gone.flac"))
	assert.Error(t, err)
}
