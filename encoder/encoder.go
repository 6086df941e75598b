// Package encoder packs PCM recordings into upload formats.
package encoder

import (
	"bytes"
	"fmt"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

// Encode returns the recording in the named format along with its mime type.
func Encode(format string, pcm []int16, sampleRate int) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case FormatWAV:
		if err := EncodeWAV(&buf, pcm, sampleRate); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "audio/wav", nil
	case FormatFLAC, "":
		if err := EncodeFLAC(&buf, pcm, sampleRate); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "audio/flac", nil
	default:
		return nil, "", fmt.Errorf("unknown audio format %q (use wav or flac)", format)
	}
}

// Ext is the file extension for format, used for upload file names.
func Ext(format string) string {
	if format == "" {
		return FormatFLAC
	}
	return format
}
