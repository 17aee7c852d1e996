//go:build gocv
// +build gocv

package vision

import (
	"math"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
)

// Localize выделяет связные области с высоким градиентом яркости.
// Уверенность области — среднее значение карты аномальности внутри её рамки.
func (e *FeatureExtractor) Localize(imageData []byte, threshold float64, minArea int) []entity.DefectRegion {
	gray, err := decodeGray(imageData, 1)
	if err != nil {
		e.log.Debug("skipping localization", zap.Error(err))
		return nil
	}
	defer gray.Close()

	width, height := gray.Cols(), gray.Rows()
	pixels := gray.ToBytes()
	if len(pixels) != width*height {
		return nil
	}

	gradMap := gradientMap(pixels, width, height)

	mask, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8U, anomalyMask(gradMap, threshold))
	if err != nil {
		e.log.Warn("failed to build anomaly mask", zap.Error(err))
		return nil
	}
	defer mask.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []entity.DefectRegion
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) < float64(minArea) {
			continue
		}

		rect := gocv.BoundingRect(contour)
		confidence := math.Max(0.0, math.Min(1.0, meanInRect(gradMap, width, rect)))

		region, err := entity.NewDefectRegion(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy(), entity.DefectTypeAnomaly, confidence, "AnomalyDetector")
		if err != nil {
			e.log.Warn("dropping malformed region", zap.Error(err))
			continue
		}
		regions = append(regions, region)
	}
	return regions
}

var _ port.AnomalyLocalizer = (*FeatureExtractor)(nil)
