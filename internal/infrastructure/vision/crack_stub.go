//go:build !gocv
// +build !gocv

package vision

import (
	"defect-pipeline/internal/domain/entity"
)

func (d *CrackDetector) detectRegions(imageData []byte) []entity.DefectRegion {
	_ = imageData
	d.log.Debug("crack detection is unavailable without gocv build tag")
	return nil
}
