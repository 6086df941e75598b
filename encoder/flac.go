package encoder

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// EncodeFLAC writes pcm as a FLAC stream of BlockSize frames. Subframes are
// verbatim; the encoder's prediction analysis picks better ones when it can.
func EncodeFLAC(w io.Writer, pcm []int16, sampleRate int) error {
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
		NSamples:      uint64(len(pcm)),
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	for i := 0; i < len(pcm); i += BlockSize {
		block := pcm[i:min(i+BlockSize, len(pcm))]
		if err := enc.WriteFrame(newFrame(block, sampleRate)); err != nil {
			enc.Close()
			return fmt.Errorf("writing flac frame at %d: %w", i, err)
		}
	}
	return enc.Close()
}

func newFrame(block []int16, sampleRate int) *frame.Frame {
	samples := make([]int32, len(block))
	for i, s := range block {
		samples[i] = int32(s)
	}
	return &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    uint32(sampleRate),
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(block),
		}},
	}
}
