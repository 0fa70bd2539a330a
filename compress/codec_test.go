package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
)

func testPayload(n int) []byte {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, n)
	for i := range data {
		// Repetitive low-entropy bytes so every codec actually shrinks it.
		data[i] = byte(rng.Intn(16))
	}

	return data
}

func TestCodecRoundTrip(t *testing.T) {
	types := []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	}
	payloads := [][]byte{
		nil,
		[]byte{0x42},
		testPayload(64 * 1024),
	}

	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			codec, err := ByType(typ, 2)
			require.NoError(t, err)

			for _, payload := range payloads {
				compressed, err := codec.Compress(payload)
				require.NoError(t, err)

				restored, err := codec.Decompress(compressed)
				require.NoError(t, err)
				if len(payload) == 0 {
					require.Empty(t, restored)
				} else {
					require.Equal(t, payload, restored)
				}
			}
		})
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	payload := bytes.Repeat([]byte{1, 2, 3, 4}, 8192)

	for _, typ := range []format.CompressionType{format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		codec, err := ByType(typ, 1)
		require.NoError(t, err)
		compressed, err := codec.Compress(payload)
		require.NoError(t, err)
		require.Less(t, len(compressed), len(payload), "%s should shrink repetitive data", typ)
	}
}

func TestByTypeUnknown(t *testing.T) {
	_, err := ByType(format.CompressionType(0x7F), 1)
	require.ErrorIs(t, err, errs.ErrUnsupportedCompressionType)
}

func TestZstdConcurrencyClamped(t *testing.T) {
	// Out-of-range concurrency values fall back to a usable codec.
	for _, c := range []int{-5, 0, 1, 1024} {
		codec, err := NewZstdCodec(c)
		require.NoError(t, err)

		payload := testPayload(4096)
		compressed, err := codec.Compress(payload)
		require.NoError(t, err)
		restored, err := codec.Decompress(compressed)
		require.NoError(t, err)
		require.Equal(t, payload, restored)
	}
}
