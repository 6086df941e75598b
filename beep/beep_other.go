//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"dictate/log"
)

// One playback device is kept open; each Play swaps the buffer the data
// callback reads from.
var (
	initOnce sync.Once
	ctx      *malgo.AllocatedContext
	device   *malgo.Device

	playMu  sync.Mutex
	current atomic.Pointer[[]byte]
	pos     atomic.Uint32
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(ctx.Context, config, malgo.DeviceCallbacks{Data: fill})
	return err
}

func setup() {
	var err error
	ctx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("beep: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Warnf("beep device: %v", err)
		ctx.Uninit()
		ctx.Free()
		ctx = nil
	}
}

func fill(out, _ []byte, frameCount uint32) {
	clear(out)
	buf := current.Load()
	if buf == nil {
		return
	}
	p := pos.Load()
	rest := uint32(len(*buf)) - p
	if rest == 0 {
		current.Store(nil)
		return
	}
	n := min(frameCount*2, rest)
	copy(out[:n], (*buf)[p:p+n])
	pos.Store(p + n)
}

func encode(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func play(t Tone) {
	initOnce.Do(setup)
	if ctx == nil {
		return
	}
	data := encode(Samples(t, sampleRate, 1))

	playMu.Lock()
	defer playMu.Unlock()

	device.Stop()
	pos.Store(0)
	current.Store(&data)
	if err := device.Start(); err != nil {
		// The device goes stale across sleep/wake; rebuild once.
		device.Uninit()
		if err := initDevice(); err != nil {
			current.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			current.Store(nil)
		}
	}
}

func Close() {
	playMu.Lock()
	defer playMu.Unlock()
	if ctx == nil {
		return
	}
	device.Uninit()
	ctx.Uninit()
	ctx.Free()
	ctx = nil
}
