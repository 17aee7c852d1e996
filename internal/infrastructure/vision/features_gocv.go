//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Extract приводит изображение к квадрату 256x256 в grayscale и считает
// вектор признаков фиксированной длины.
func (e *FeatureExtractor) Extract(imageData []byte) ([]float64, error) {
	gray, err := decodeGray(imageData, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image for features: %w", err)
	}
	defer gray.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(featureSide, featureSide), 0, 0, gocv.InterpolationLinear)

	pixels := resized.ToBytes()
	if len(pixels) != featureSide*featureSide {
		return nil, fmt.Errorf("unexpected pixel buffer size: %d", len(pixels))
	}
	return computeFeatures(pixels, featureSide, featureSide), nil
}
