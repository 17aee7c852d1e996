package vision

import (
	"math"

	"go.uber.org/zap"

	"defect-pipeline/internal/domain/port"
)

// Сторона квадрата, к которой приводится изображение перед извлечением признаков.
const featureSide = 256

// FeatureDimension — длина вектора признаков:
// 4 статистики яркости, 8 корзин гистограммы, 2 статистики градиента.
const FeatureDimension = 14

// FeatureExtractor строит компактный вектор признаков по grayscale
// изображению. Используется банком нормальных образцов для оценки аномальности.
type FeatureExtractor struct {
	log *zap.Logger
}

// NewFeatureExtractor создаёт извлекатель признаков.
func NewFeatureExtractor(log *zap.Logger) *FeatureExtractor {
	return &FeatureExtractor{log: log.Named("feature_extractor")}
}

// computeFeatures считает статистики по grayscale пикселям размером width x height.
// Порядок фиксирован: mean, std, min, max, 8 корзин гистограммы, gradMean, gradStd.
func computeFeatures(pixels []byte, width, height int) []float64 {
	n := float64(len(pixels))

	var sum float64
	minV, maxV := 255.0, 0.0
	for _, p := range pixels {
		v := float64(p)
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	mean := sum / n

	var variance float64
	for _, p := range pixels {
		delta := float64(p) - mean
		variance += delta * delta
	}
	std := math.Sqrt(variance / n)

	var hist [8]float64
	for _, p := range pixels {
		hist[int(p)/32]++
	}

	features := make([]float64, 0, FeatureDimension)
	features = append(features, mean, std, minV, maxV)
	for _, h := range hist {
		features = append(features, h/n)
	}

	gradMean, gradStd := gradientStats(pixels, width, height)
	features = append(features, gradMean, gradStd)
	return features
}

// gradientStats считает среднее и разброс величины градиента яркости
// по центральным разностям. Края изображения пропускаются.
func gradientStats(pixels []byte, width, height int) (float64, float64) {
	if width < 3 || height < 3 {
		return 0, 0
	}

	grads := make([]float64, 0, (width-2)*(height-2))
	var sum float64
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := float64(pixels[y*width+x+1]) - float64(pixels[y*width+x-1])
			gy := float64(pixels[(y+1)*width+x]) - float64(pixels[(y-1)*width+x])
			g := math.Hypot(gx, gy)
			grads = append(grads, g)
			sum += g
		}
	}

	mean := sum / float64(len(grads))
	var variance float64
	for _, g := range grads {
		delta := g - mean
		variance += delta * delta
	}
	return mean, math.Sqrt(variance / float64(len(grads)))
}

var _ port.FeatureExtractor = (*FeatureExtractor)(nil)
