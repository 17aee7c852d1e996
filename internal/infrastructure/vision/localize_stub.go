//go:build !gocv
// +build !gocv

package vision

import (
	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
)

// Localize без gocv не выделяет области: аномалии остаются без локализации.
func (e *FeatureExtractor) Localize(imageData []byte, threshold float64, minArea int) []entity.DefectRegion {
	_, _, _ = imageData, threshold, minArea
	e.log.Debug("anomaly localization is unavailable without gocv build tag")
	return nil
}

var _ port.AnomalyLocalizer = (*FeatureExtractor)(nil)
