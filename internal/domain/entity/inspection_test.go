package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNGResult(t *testing.T) {
	region, err := NewDefectRegion(1, 2, 30, 4, DefectTypeCrack, 0.8, "CrackDetector")
	require.NoError(t, err)

	res := NewNGResult(0.3, []DefectRegion{region}, InspectionMeta{
		ImageID:          "img-1",
		DetectorsUsed:    []string{"CrackDetector"},
		AnomalyThreshold: 0.5,
	})
	require.Equal(t, ResultNG, res.Result)
	require.True(t, res.HasDefects())
	require.Equal(t, 1, res.DefectCount())
	require.Equal(t, map[string]int{DefectTypeCrack: 1}, res.DefectsByType())
	require.Equal(t, ModelVersion, res.ModelVersion)
	require.False(t, res.IsError())
}

func TestNewErrorResultIsFailClosed(t *testing.T) {
	res := NewErrorResult(InspectionMeta{ImageID: "img-2"})
	require.Equal(t, ResultNG, res.Result)
	require.Equal(t, 1.0, res.AnomalyScore)
	require.Empty(t, res.DefectRegions)
	require.Equal(t, []string{DetectorError}, res.DetectorsUsed)
	require.True(t, res.IsError())
}

func TestNewSkippedResult(t *testing.T) {
	res := NewSkippedResult("img-3")
	require.Equal(t, ResultNotAvailable, res.Result)
	require.Zero(t, res.AnomalyScore)
	require.False(t, res.IsError())
}
