package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTechnologyCanonicalizes(t *testing.T) {
	t.Parallel()

	tech, ok := ParseTechnology("fdm")
	require.True(t, ok)
	require.Equal(t, FDM, tech)

	tech, ok = ParseTechnology(" Sla ")
	require.True(t, ok)
	require.Equal(t, SLA, tech)

	_, ok = ParseTechnology("SLS")
	require.False(t, ok)
	_, ok = ParseTechnology("")
	require.False(t, ok)
}

func TestBuildVolumes(t *testing.T) {
	t.Parallel()

	require.Equal(t, BuildVolume{X: 250, Y: 210, Z: 210}, BuildVolumeFor(FDM))
	require.Equal(t, BuildVolume{X: 120, Y: 120, Z: 150}, BuildVolumeFor(SLA))

	require.False(t, BuildVolumeFor(SLA).Exceeds(120, 120, 150))
	require.True(t, BuildVolumeFor(SLA).Exceeds(130, 100, 100))
	require.True(t, BuildVolumeFor(FDM).Exceeds(100, 211, 100))
}

func TestLayerHeightAllowed(t *testing.T) {
	t.Parallel()

	for _, h := range []float64{0.1, 0.2, 0.3} {
		require.True(t, LayerHeightAllowed(FDM, h))
	}
	require.False(t, LayerHeightAllowed(FDM, 0.15))
	require.False(t, LayerHeightAllowed(FDM, 0.025))

	for _, h := range []float64{0.025, 0.05} {
		require.True(t, LayerHeightAllowed(SLA, h))
	}
	require.False(t, LayerHeightAllowed(SLA, 0.1))

	// Equality is by tolerance, so float arithmetic noise is accepted.
	require.True(t, LayerHeightAllowed(FDM, 0.1+1e-12))
	require.True(t, LayerHeightAllowed(SLA, 0.05-1e-12))
}
