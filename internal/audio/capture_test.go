package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesToFloat32RoundTripsIEEE754Bits(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, -0.25, 3.14159}
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	got := bytesToFloat32(buf)
	require.Equal(t, values, got)

	returnFloat32Buffer(got)
}

func TestBytesToFloat32HandlesEmptyInput(t *testing.T) {
	got := bytesToFloat32(nil)
	require.Empty(t, got)
}

func TestNewCapturerStoresResampleQuality(t *testing.T) {
	// malgo.InitContext requires a real audio backend, which may be
	// unavailable in this environment; skip rather than fail if so.
	c, err := NewCapturer(Config{SampleRate: 16000, ResampleQuality: "high"})
	if err != nil {
		t.Skipf("no audio backend available: %v", err)
	}
	defer c.Close()
	require.Equal(t, "high", c.resampleQuality)
}

func TestBytesToFloat32TruncatesPartialTrailingBytes(t *testing.T) {
	buf := make([]byte, 6) // one full float32 plus 2 stray bytes
	binary.LittleEndian.PutUint32(buf, math.Float32bits(2.5))

	got := bytesToFloat32(buf)
	require.Len(t, got, 1)
	require.Equal(t, float32(2.5), got[0])
}
