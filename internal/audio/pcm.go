package audio

import "encoding/binary"

// Int16ToFloat32 converts signed 16-bit PCM into normalized samples.
func Int16ToFloat32(pcm []int16) []float32 {
	samples := make([]float32, len(pcm))
	for i, v := range pcm {
		samples[i] = float32(v) / 32768
	}
	return samples
}

// Float32ToInt16 converts normalized samples into signed 16-bit PCM,
// clamping anything outside the -1..1 range.
func Float32ToInt16(samples []float32) []int16 {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		switch {
		case s >= 1:
			pcm[i] = 32767
		case s <= -1:
			pcm[i] = -32768
		default:
			pcm[i] = int16(s * 32767)
		}
	}
	return pcm
}

// Float32ToS16LE encodes normalized samples as little-endian 16-bit PCM bytes,
// the wire format streaming recognizers expect.
func Float32ToS16LE(samples []float32) []byte {
	pcm := Float32ToInt16(samples)
	out := make([]byte, 2*len(pcm))
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}
