// Package audio buffers raw PCM per bot and periodically flushes it into
// transcription requests, framing the data as a RIFF/WAV container first.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Format describes raw PCM audio.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is 16kHz mono 16-bit PCM, the standard speech pipeline rate.
var DefaultFormat = Format{
	SampleRate:    16000,
	Channels:      1,
	BitsPerSample: 16,
}

// Duration computes how long dataLen bytes of PCM last in this format.
func (f Format) Duration(dataLen int) time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 || f.BitsPerSample == 0 {
		return 0
	}
	bytesPerSample := f.BitsPerSample / 8
	samples := dataLen / (bytesPerSample * f.Channels)
	seconds := float64(samples) / float64(f.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// EncodeWAV frames raw PCM into a self-describing WAV container:
// RIFF header, PCM fmt chunk, then the data chunk.
func EncodeWAV(pcm []byte, format Format) []byte {
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(format.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(format.SampleRate))
	byteRate := uint32(format.SampleRate * format.Channels * format.BitsPerSample / 8)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	blockAlign := uint16(format.Channels * format.BitsPerSample / 8)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(format.BitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV parses a WAV container and returns its format and PCM payload.
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < 44 {
		return Format{}, nil, fmt.Errorf("wav data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	offset := 12
	var format Format
	haveFmt := false

	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(data) {
				return Format{}, nil, fmt.Errorf("invalid fmt chunk")
			}
			if binary.LittleEndian.Uint16(data[body:body+2]) != 1 {
				return Format{}, nil, fmt.Errorf("only PCM wav supported")
			}
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			format.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, fmt.Errorf("data chunk before fmt chunk")
			}
			end := body + chunkSize
			if end > len(data) {
				end = len(data)
			}
			return format, data[body:end], nil
		}

		// Chunks are word-aligned: odd-sized ones carry a pad byte.
		offset = body + chunkSize + (chunkSize & 1)
	}

	return Format{}, nil, fmt.Errorf("data chunk not found")
}
