package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

const (
	extOGG  = ".ogg"
	extWAV  = ".wav"
	extMP3  = ".mp3"
	extFLAC = ".flac"
)

// errUnsupportedFormat is returned for assets with an unknown extension.
var errUnsupportedFormat = errors.New("unsupported audio format")

// decode opens path and returns a seekable stream for it. Closing the stream closes the file.
func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != extOGG && ext != extWAV && ext != extMP3 && ext != extFLAC {
		return nil, beep.Format{}, fmt.Errorf("%s: %w", ext, errUnsupportedFormat)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open asset: %w", err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)

	switch ext {
	case extOGG:
		streamer, format, err = vorbis.Decode(f)
	case extWAV:
		streamer, format, err = wav.Decode(f)
	case extMP3:
		streamer, format, err = mp3.Decode(f)
	case extFLAC:
		streamer, format, err = flac.Decode(f)
	}

	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	return streamer, format, nil
}

// probe decodes the header of path and closes it again.
func probe(path string) (beep.Format, error) {
	streamer, format, err := decode(path)
	if err != nil {
		return beep.Format{}, err
	}

	_ = streamer.Close()

	return format, nil
}
