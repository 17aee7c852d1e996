package vision

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"defect-pipeline/config"
)

func TestNewCrackDetector_InvalidConfig(t *testing.T) {
	cfg := config.Default().Vision.Crack
	cfg.MinAspectRatio = 0

	_, err := NewCrackDetector(cfg, 32, zap.NewNop())
	require.Error(t, err)
}

func TestNewHoleDetector_InvalidConfig(t *testing.T) {
	cfg := config.Default().Vision.Hole
	cfg.MaxArea = cfg.MinArea - 1

	_, err := NewHoleDetector(cfg, 32, zap.NewNop())
	require.Error(t, err)
}

func TestCrackDetector_GarbageInput(t *testing.T) {
	detector, err := NewCrackDetector(config.Default().Vision.Crack, 32, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.Empty(t, detector.Detect(ctx, nil))
	require.Empty(t, detector.Detect(ctx, []byte("not an image")))
	require.Equal(t, 0.0, detector.Score(ctx, []byte("not an image")))
}

func TestHoleDetector_GarbageInput(t *testing.T) {
	detector, err := NewHoleDetector(config.Default().Vision.Hole, 32, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.Empty(t, detector.Detect(ctx, nil))
	require.Empty(t, detector.Detect(ctx, []byte{0xff, 0xd8, 0xff}))
	require.Equal(t, 0.0, detector.Score(ctx, nil))
}

func TestComputeFeatures_UniformImage(t *testing.T) {
	const side = 16
	pixels := make([]byte, side*side)
	for i := range pixels {
		pixels[i] = 100
	}

	features := computeFeatures(pixels, side, side)
	require.Len(t, features, FeatureDimension)

	require.Equal(t, 100.0, features[0]) // mean
	require.Equal(t, 0.0, features[1])   // std
	require.Equal(t, 100.0, features[2]) // min
	require.Equal(t, 100.0, features[3]) // max

	// Вся масса гистограммы в корзине значения 100 (100/32 == 3).
	require.Equal(t, 1.0, features[4+3])
	require.Equal(t, 0.0, features[4])

	// Градиенты однородного изображения нулевые.
	require.Equal(t, 0.0, features[12])
	require.Equal(t, 0.0, features[13])
}

func TestComputeFeatures_Deterministic(t *testing.T) {
	const side = 16
	pixels := make([]byte, side*side)
	for i := range pixels {
		pixels[i] = byte(i * 7 % 256)
	}

	first := computeFeatures(pixels, side, side)
	second := computeFeatures(pixels, side, side)
	require.Equal(t, first, second)
}

func TestGradientMap_UniformImageIsZero(t *testing.T) {
	const side = 16
	pixels := make([]byte, side*side)
	for i := range pixels {
		pixels[i] = 120
	}

	grad := gradientMap(pixels, side, side)
	require.Len(t, grad, side*side)
	for _, v := range grad {
		require.Equal(t, 0.0, v)
	}
}

func TestGradientMap_NormalizedToUnitRange(t *testing.T) {
	const side = 16
	pixels := make([]byte, side*side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			if x >= side/2 {
				pixels[y*side+x] = 255
			}
		}
	}

	grad := gradientMap(pixels, side, side)
	var sawMax bool
	for _, v := range grad {
		require.LessOrEqual(t, v, 1.0)
		if v > 0.99 {
			sawMax = true
		}
	}
	// Перепад яркости даёт точку с максимальным нормированным градиентом.
	require.True(t, sawMax)
}

func TestAnomalyMask_Threshold(t *testing.T) {
	mask := anomalyMask([]float64{0.1, 0.5, 0.9, 0.51}, 0.5)
	require.Equal(t, []byte{0, 0, 255, 255}, mask)
}

func TestMeanInRect(t *testing.T) {
	gradMap := []float64{
		0, 0, 0, 0,
		0, 1, 1, 0,
		0, 1, 1, 0,
		0, 0, 0, 0,
	}
	require.Equal(t, 1.0, meanInRect(gradMap, 4, image.Rect(1, 1, 3, 3)))
	require.Equal(t, 0.25, meanInRect(gradMap, 4, image.Rect(0, 0, 4, 1).Union(image.Rect(0, 0, 2, 2))))
	require.Equal(t, 0.0, meanInRect(gradMap, 4, image.Rectangle{}))
}

func TestComputeFeatures_HistogramNormalized(t *testing.T) {
	const side = 32
	pixels := make([]byte, side*side)
	for i := range pixels {
		pixels[i] = byte(i % 256)
	}

	features := computeFeatures(pixels, side, side)

	var total float64
	for _, h := range features[4:12] {
		require.GreaterOrEqual(t, h, 0.0)
		total += h
	}
	require.InDelta(t, 1.0, total, 1e-9)
}
