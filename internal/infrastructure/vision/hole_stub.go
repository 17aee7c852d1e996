//go:build !gocv
// +build !gocv

package vision

import (
	"defect-pipeline/internal/domain/entity"
)

func (d *HoleDetector) detectRegions(imageData []byte) []entity.DefectRegion {
	_ = imageData
	d.log.Debug("hole detection is unavailable without gocv build tag")
	return nil
}
