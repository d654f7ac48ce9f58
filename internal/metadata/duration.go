package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/tcolgate/mp3"
)

// calculateDuration returns the duration of an audio file in seconds.
func calculateDuration(path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return durationMP3(path)
	case ".flac":
		return durationFLAC(path)
	case ".wav":
		return durationWAV(path)
	case ".m4a", ".mp4":
		return durationMP4(path)
	default:
		return 0, fmt.Errorf("unsupported format: %s", filepath.Ext(path))
	}
}

// durationMP3 sums frame durations; if no frame decodes at all it estimates
// from the file size at 192 kbps.
func durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return estimateFromSize(f, 192000)
			}
			break
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds() + 0.5), nil
}

// durationFLAC reads STREAMINFO.
func durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, errors.New("flac stream missing sample info")
}

// durationWAV uses the PCM chunk size when the decoder found it, otherwise
// the file size minus a canonical 44 byte header.
func durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, errors.New("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, errors.New("invalid wav header")
	}

	if d, err := dec.Duration(); err == nil && d > 0 {
		return int(d.Seconds() + 0.5), nil
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pcmBytes := st.Size() - 44
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	frameSize := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if frameSize <= 0 {
		return 0, errors.New("invalid sample frame size")
	}
	secs := float64(pcmBytes/frameSize) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// durationMP4 walks the top-level atoms to moov/mvhd and reads its timescale
// and duration.
func durationMP4(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	head := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, err
		}
		size := int64(binary.BigEndian.Uint32(head[0:4]))
		if size < 8 {
			return 0, errors.New("invalid atom size")
		}
		if string(head[4:8]) != "moov" {
			if _, err := f.Seek(size-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}

		for read := int64(8); read < size; {
			if _, err := io.ReadFull(f, head); err != nil {
				return 0, err
			}
			subSize := int64(binary.BigEndian.Uint32(head[0:4]))
			if subSize < 8 {
				return 0, errors.New("invalid sub-atom size")
			}
			if string(head[4:8]) == "mvhd" {
				return readMvhd(f)
			}
			if _, err := f.Seek(subSize-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += subSize
		}
		return 0, errors.New("mvhd atom not found")
	}
}

func readMvhd(r io.Reader) (int, error) {
	version := make([]byte, 4) // version + flags
	if _, err := io.ReadFull(r, version); err != nil {
		return 0, err
	}

	var timescale uint32
	var units uint64
	if version[0] == 1 {
		buf := make([]byte, 8+8+4+8)
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, err
		}
		timescale = binary.BigEndian.Uint32(buf[16:20])
		units = binary.BigEndian.Uint64(buf[20:28])
	} else {
		buf := make([]byte, 4+4+4+4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, err
		}
		timescale = binary.BigEndian.Uint32(buf[8:12])
		units = uint64(binary.BigEndian.Uint32(buf[12:16]))
	}
	if timescale == 0 {
		return 0, errors.New("invalid timescale")
	}
	secs := float64(units) / float64(timescale)
	return int(secs + 0.5), nil
}

func estimateFromSize(f *os.File, bitrate int64) (int, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return int(st.Size() * 8 / bitrate), nil
}
