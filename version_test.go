package odbcarrow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("03.52.0000.0000")
	require.NoError(t, err)
	require.Equal(t, 3, v.Major)
	require.Equal(t, 52, v.Minor)
	require.Equal(t, 0, v.Patch)
	require.True(t, v.IsODBC3())
	require.Equal(t, "03.52.0000.0000", v.String())

	v, err = ParseVersion("v2.1")
	require.NoError(t, err)
	require.False(t, v.IsODBC3())
	require.True(t, v.AtLeast(2, 0, 5))
	require.False(t, v.AtLeast(2, 1, 1))

	_, err = ParseVersion("unknown")
	require.Error(t, err)
}

func TestVersionString(t *testing.T) {
	require.Equal(t, "1.2.3", Version{Major: 1, Minor: 2, Patch: 3}.String())
}
