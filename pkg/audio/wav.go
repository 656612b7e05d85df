package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/zaf/g711"
)

// WrapWAV wraps raw 16-bit little-endian mono LPCM in a minimal WAV
// container at the given sample rate. Speech backends that refuse raw PCM
// accept the result as audio/wav.
func WrapWAV(pcm []byte, sampleRate int) []byte {
	const headerSize = 44
	dataLen := len(pcm)

	buf := make([]byte, headerSize+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[headerSize:], pcm)
	return buf
}

// UnwrapWAV extracts the 16-bit little-endian mono LPCM samples and sample
// rate from a WAV container. Chunks other than fmt and data are skipped.
func UnwrapWAV(wav []byte) (pcm []byte, sampleRate int, err error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("audio: not a RIFF/WAVE stream")
	}

	var (
		channels      int
		bitsPerSample int
		haveFmt       bool
	)

	for off := 12; off+8 <= len(wav); {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(wav) {
			return nil, 0, fmt.Errorf("audio: truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("audio: fmt chunk too short")
			}
			format := int(binary.LittleEndian.Uint16(wav[body : body+2]))
			if format != 1 {
				return nil, 0, fmt.Errorf("audio: unsupported WAV format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(wav[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("audio: data chunk before fmt chunk")
			}
			if channels != 1 || bitsPerSample != 16 {
				return nil, 0, fmt.Errorf("audio: unsupported layout %d ch / %d bit (want mono 16-bit)", channels, bitsPerSample)
			}
			return wav[body : body+size], sampleRate, nil
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}
	return nil, 0, fmt.Errorf("audio: no data chunk")
}

// ResamplePCM converts 16-bit little-endian mono LPCM from one sample rate
// to another by linear interpolation. Adequate for telephony-band speech;
// returns the input unchanged when the rates match.
func ResamplePCM(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || len(pcm) < 2 {
		return pcm
	}

	in := make([]int16, len(pcm)/2)
	for i := range in {
		in[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}

	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	out := make([]byte, outLen*2)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * float64(fromRate) / float64(toRate)
		j := int(pos)
		if j >= len(in)-1 {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(in[len(in)-1]))
			continue
		}
		frac := pos - float64(j)
		sample := float64(in[j])*(1-frac) + float64(in[j+1])*frac
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(sample)))
	}
	return out
}

// PCMToUlaw compresses 16-bit little-endian mono LPCM to µ-law.
func PCMToUlaw(pcm []byte) []byte {
	return g711.EncodeUlaw(pcm)
}

// UlawToPCM expands µ-law to 16-bit little-endian mono LPCM.
func UlawToPCM(ulaw []byte) []byte {
	return g711.DecodeUlaw(ulaw)
}
