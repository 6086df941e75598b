//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"dictate/log"
)

var (
	clientMu sync.Mutex
	client   *pulse.Client
)

func getClient() (*pulse.Client, error) {
	clientMu.Lock()
	defer clientMu.Unlock()
	if client != nil {
		return client, nil
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("dictate"))
	if err != nil {
		return nil, err
	}
	client = c
	return c, nil
}

func play(t Tone) {
	samples := Samples(t, sampleRate, 2)
	if len(samples) == 0 {
		return
	}
	c, err := getClient()
	if err != nil {
		log.Warnf("beep: %v", err)
		return
	}

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		log.Warnf("beep playback: %v", err)
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}

// Close releases the PulseAudio connection.
func Close() {
	clientMu.Lock()
	defer clientMu.Unlock()
	if client != nil {
		client.Close()
		client = nil
	}
}
