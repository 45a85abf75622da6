// Package wav provides a minimal PCM WAV codec and a best-effort resampler
// for 16-bit mono audio produced by the generation engine.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/book-expert/musicgen-service/internal/core"
)

// WAV container layout constants.
const (
	headerSize      = 44
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkMinSize = 16

	formatPCM      = 1
	bitsPerSample  = 16
	bytesPerSample = 2
	monoChannels   = 1
)

// Static errors.
var (
	// ErrTooShort indicates the input is smaller than a RIFF header.
	ErrTooShort = errors.New("wav data too short")
	// ErrNotRIFF indicates the input does not start with a RIFF/WAVE header.
	ErrNotRIFF = errors.New("not a RIFF WAVE container")
	// ErrNoFmtChunk indicates the container has no fmt chunk before data.
	ErrNoFmtChunk = errors.New("missing fmt chunk")
	// ErrNoDataChunk indicates the container has no data chunk.
	ErrNoDataChunk = errors.New("missing data chunk")
	// ErrNotPCM16 indicates the audio is not 16-bit integer PCM.
	ErrNotPCM16 = errors.New("audio is not 16-bit PCM")
	// ErrNotMono indicates the audio has more than one channel.
	ErrNotMono = errors.New("audio is not mono")
	// ErrBadSampleRate indicates a non-positive sample rate in the header.
	ErrBadSampleRate = errors.New("invalid sample rate")
)

// Decode parses a mono 16-bit PCM WAV container into a core.Clip.
func Decode(data []byte) (core.Clip, error) {
	if len(data) < headerSize {
		return core.Clip{}, ErrTooShort
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return core.Clip{}, ErrNotRIFF
	}

	sampleRate, channels, format, bits, body, err := scanChunks(data[riffHeaderSize:])
	if err != nil {
		return core.Clip{}, err
	}

	if format != formatPCM || bits != bitsPerSample {
		return core.Clip{}, fmt.Errorf("%w: format %d, %d bits", ErrNotPCM16, format, bits)
	}

	if channels != monoChannels {
		return core.Clip{}, fmt.Errorf("%w: %d channels", ErrNotMono, channels)
	}

	if sampleRate <= 0 {
		return core.Clip{}, fmt.Errorf("%w: %d", ErrBadSampleRate, sampleRate)
	}

	samples := make([]int16, len(body)/bytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(body[i*bytesPerSample:]))
	}

	return core.Clip{SampleRate: sampleRate, Samples: samples}, nil
}

// Encode serializes a clip as a canonical 44-byte-header PCM WAV container.
func Encode(clip core.Clip) []byte {
	dataSize := len(clip.Samples) * bytesPerSample
	out := make([]byte, headerSize+dataSize)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(headerSize-chunkHeaderSize+dataSize))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], fmtChunkMinSize)
	binary.LittleEndian.PutUint16(out[20:22], formatPCM)
	binary.LittleEndian.PutUint16(out[22:24], monoChannels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(clip.SampleRate))
	byteRate := clip.SampleRate * bytesPerSample
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], bytesPerSample)
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	for i, sample := range clip.Samples {
		binary.LittleEndian.PutUint16(out[headerSize+i*bytesPerSample:], uint16(sample))
	}

	return out
}

// scanChunks walks the RIFF chunk list and returns the fmt parameters and the
// raw data chunk body.
func scanChunks(chunks []byte) (sampleRate, channels, format, bits int, body []byte, err error) {
	var haveFmt, haveData bool

	for len(chunks) >= chunkHeaderSize {
		chunkID := string(chunks[0:4])
		chunkSize := int(binary.LittleEndian.Uint32(chunks[4:8]))

		chunks = chunks[chunkHeaderSize:]
		if chunkSize < 0 || chunkSize > len(chunks) {
			chunkSize = len(chunks)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < fmtChunkMinSize {
				return 0, 0, 0, 0, nil, ErrNoFmtChunk
			}

			format = int(binary.LittleEndian.Uint16(chunks[0:2]))
			channels = int(binary.LittleEndian.Uint16(chunks[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(chunks[4:8]))
			bits = int(binary.LittleEndian.Uint16(chunks[14:16]))
			haveFmt = true
		case "data":
			body = chunks[:chunkSize]
			haveData = true
		}

		// Chunks are word-aligned.
		advance := chunkSize + chunkSize%2
		if advance > len(chunks) {
			advance = len(chunks)
		}

		chunks = chunks[advance:]
	}

	if !haveFmt {
		return 0, 0, 0, 0, nil, ErrNoFmtChunk
	}

	if !haveData {
		return 0, 0, 0, 0, nil, ErrNoDataChunk
	}

	return sampleRate, channels, format, bits, body, nil
}
