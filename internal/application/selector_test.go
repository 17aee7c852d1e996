package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
)

func TestSelectRegion_Empty(t *testing.T) {
	_, err := SelectRegion(nil, config.StrategyLargest)
	require.ErrorIs(t, err, ErrNoRegions)
}

func TestSelectRegion_Largest(t *testing.T) {
	small := region(t, 0, 0, 5, 5, 0.9)
	big := region(t, 10, 10, 20, 20, 0.1)

	got, err := SelectRegion([]entity.DefectRegion{small, big}, config.StrategyLargest)
	require.NoError(t, err)
	require.Equal(t, big, got)
}

func TestSelectRegion_HighestConfidence(t *testing.T) {
	confident := region(t, 0, 0, 5, 5, 0.9)
	big := region(t, 10, 10, 20, 20, 0.1)

	got, err := SelectRegion([]entity.DefectRegion{big, confident}, config.StrategyHighestConfidence)
	require.NoError(t, err)
	require.Equal(t, confident, got)
}

func TestSelectRegion_HighestConfidenceTieBreaksByArea(t *testing.T) {
	small := region(t, 0, 0, 5, 5, 0.8)
	big := region(t, 10, 10, 20, 20, 0.8)

	got, err := SelectRegion([]entity.DefectRegion{small, big}, config.StrategyHighestConfidence)
	require.NoError(t, err)
	require.Equal(t, big, got)
}

func TestSelectRegion_First(t *testing.T) {
	first := region(t, 0, 0, 5, 5, 0.1)
	second := region(t, 10, 10, 20, 20, 0.9)

	got, err := SelectRegion([]entity.DefectRegion{first, second}, config.StrategyFirst)
	require.NoError(t, err)
	require.Equal(t, first, got)
}

func TestSelectRegion_UnknownStrategyFallsBackToLargest(t *testing.T) {
	small := region(t, 0, 0, 5, 5, 0.9)
	big := region(t, 10, 10, 20, 20, 0.1)

	got, err := SelectRegion([]entity.DefectRegion{small, big}, "mystery")
	require.NoError(t, err)
	require.Equal(t, big, got)
}
