package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/lixenwraith/killsound/constant"
)

// Load opens and fully decodes the clip at path, resampled to rate.
// The file is closed before returning; the clip lives in memory.
func Load(path string, rate beep.SampleRate) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	streamer, format, err := decode(f, path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode file %s: %w", path, err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != rate {
		s = beep.Resample(constant.AudioResampleQuality, format.SampleRate, rate, s)
	}

	buf := beep.NewBuffer(beep.Format{
		SampleRate:  rate,
		NumChannels: constant.AudioChannels,
		Precision:   constant.AudioBitDepth / 8,
	})
	buf.Append(s)

	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("failed to decode file %s: %w", path, err)
	}
	return buf, nil
}

// LoadStream is the pipeline loader backed by Load
func LoadStream(path string, rate beep.SampleRate) (beep.Streamer, error) {
	buf, err := Load(path, rate)
	if err != nil {
		return nil, err
	}
	return buf.Streamer(0, buf.Len()), nil
}

// decode picks the decoder by file extension, wav by default
func decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3.Decode(f)
	case ".ogg":
		return vorbis.Decode(f)
	case ".flac":
		return flac.Decode(f)
	default:
		return wav.Decode(f)
	}
}
