//go:build !gocv
// +build !gocv

package vision

import "errors"

// Extract без gocv не работает: банк нормальных образцов остаётся необученным.
func (e *FeatureExtractor) Extract(imageData []byte) ([]float64, error) {
	_ = imageData
	return nil, errors.New("feature extraction is unavailable without gocv build tag")
}
