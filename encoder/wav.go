package encoder

import (
	"encoding/binary"
	"io"
)

const wavHeaderSize = 44

// EncodeWAV writes a canonical 16-bit mono RIFF file.
func EncodeWAV(w io.Writer, pcm []int16, sampleRate int) error {
	dataSize := uint32(len(pcm) * 2)
	byteRate := uint32(sampleRate * Channels * BitsPerSample / 8)

	hdr := make([]byte, wavHeaderSize)
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], 36+dataSize)
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:], Channels)
	binary.LittleEndian.PutUint32(hdr[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(hdr[34:], BitsPerSample)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], dataSize)

	if _, err := w.Write(hdr); err != nil {
		return err
	}
	body := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(body[i*2:], uint16(s))
	}
	_, err := w.Write(body)
	return err
}
