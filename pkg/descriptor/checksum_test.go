package descriptor_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

func TestChecksum(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		sum, err := descriptor.Checksum("raw(deadbeef)")
		require.NoError(t, err)
		require.Equal(t, "89f8spxm", sum)

		desc, err := descriptor.AddChecksum("raw(deadbeef)")
		require.NoError(t, err)
		require.Equal(t, "raw(deadbeef)#89f8spxm", desc)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		_, err := descriptor.Checksum("raw(deadébeef)")
		require.ErrorIs(t, err, descriptor.ErrInvalidDescriptor)
	})
}
