package laz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllFieldsSetsEveryGroup(t *testing.T) {
	s := AllFields()

	for g := SelectBase; g <= selectLast; g <<= 1 {
		require.True(t, s.IsSet(g), "group %#x should be set", uint16(g))
	}
}

func TestBaseOnlySetsMandatoryGroup(t *testing.T) {
	s := BaseOnly()

	require.True(t, s.IsSet(SelectBase))
	for g := SelectBase << 1; g <= selectLast; g <<= 1 {
		require.False(t, s.IsSet(g), "group %#x should be clear", uint16(g))
	}
}

func TestSkipRestoresPreDecompressState(t *testing.T) {
	s := BaseOnly()

	withZ := s.Decompress(SelectZ)
	require.True(t, withZ.IsSet(SelectZ))

	restored := withZ.Skip(SelectZ)
	require.Equal(t, s, restored)

	// Skipping again is idempotent.
	require.Equal(t, restored, restored.Skip(SelectZ))
}

func TestBaseGroupCannotBeUnset(t *testing.T) {
	s := AllFields().Skip(SelectBase)
	require.True(t, s.IsSet(SelectBase))

	s = BaseOnly().Skip(SelectBase | SelectRGB)
	require.True(t, s.IsSet(SelectBase))
	require.False(t, s.IsSet(SelectRGB))
}

func TestSelectionTranslation(t *testing.T) {
	t.Run("base only", func(t *testing.T) {
		require.Equal(t, uint32(0x1), BaseOnly().ToNative())
		require.Equal(t, uint32(0x0), BaseOnly().ToExternal())
	})

	t.Run("all groups", func(t *testing.T) {
		var native, external uint32
		for _, bits := range nativeSelectionBits {
			native |= bits
		}
		for _, bits := range externalSelectionBits {
			external |= bits
		}
		require.Equal(t, native, AllFields().ToNative())
		require.Equal(t, external, AllFields().ToExternal())
	})

	t.Run("single group maps to its bit", func(t *testing.T) {
		s := BaseOnly().Decompress(SelectGPSTime)
		require.Equal(t, nativeSelectionBits[SelectBase]|nativeSelectionBits[SelectGPSTime], s.ToNative())
		require.Equal(t, externalSelectionBits[SelectGPSTime], s.ToExternal())
	})
}
