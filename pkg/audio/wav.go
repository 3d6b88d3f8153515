// Package audio provides the small amount of audio-format handling Wordwire
// needs: probing RIFF/WAVE containers produced by the speech-synthesis service.
//
// Wordwire never decodes or transcodes media. Recorded chunks pass through the
// pipeline as opaque bytes; only synthesized output is inspected, and only its
// header, to validate the response and to report duration in logs and metrics.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// WAVInfo holds the format metadata extracted from a RIFF/WAVE container.
type WAVInfo struct {
	// SampleRate in Hz (e.g. 22050, 24000, 44100).
	SampleRate int

	// Channels: 1 = mono, 2 = stereo.
	Channels int

	// BitsPerSample as declared by the fmt chunk (usually 16).
	BitsPerSample int

	// DataOffset is the byte offset of the first PCM sample.
	DataOffset int

	// DataLen is the declared length of the data chunk in bytes.
	DataLen int
}

// Duration returns the play time of the data chunk. Zero when the header
// declared no usable format.
func (i WAVInfo) Duration() time.Duration {
	bytesPerSecond := i.SampleRate * i.Channels * i.BitsPerSample / 8
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(i.DataLen) / float64(bytesPerSecond) * float64(time.Second))
}

// ParseWAV scans the RIFF/WAVE container in wav and returns the audio format
// from the "fmt " sub-chunk and the location of the "data" chunk. Walking the
// chunk list is more robust than assuming the canonical 44-byte header because
// encoders may emit extra chunks (LIST, fact) or a non-minimal fmt chunk.
func ParseWAV(wav []byte) (WAVInfo, error) {
	if len(wav) < 12 {
		return WAVInfo{}, errors.New("audio: too short to be a RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return WAVInfo{}, errors.New("audio: missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return WAVInfo{}, errors.New("audio: missing WAVE identifier")
	}

	var info WAVInfo
	foundFmt := false

	// Walk RIFF chunks starting immediately after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		if chunkSize < 0 {
			return WAVInfo{}, fmt.Errorf("audio: chunk %q declares invalid size", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return WAVInfo{}, errors.New("audio: data chunk precedes fmt chunk")
			}
			info.DataOffset = offset + 8
			info.DataLen = chunkSize
			if remaining := len(wav) - info.DataOffset; info.DataLen > remaining {
				// Streams may truncate the final chunk; trust the bytes we have.
				info.DataLen = remaining
			}
			return info, nil
		}

		// Advance past this chunk (chunks are word-aligned: pad by 1 if odd size).
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return WAVInfo{}, errors.New("audio: missing data chunk")
}

// IsWAV reports whether b starts with a RIFF/WAVE signature. It does not
// validate the chunk list; use ParseWAV for that.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}
