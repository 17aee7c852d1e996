//go:build gocv
// +build gocv

package vision

import (
	"image"
	"math"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"defect-pipeline/internal/domain/entity"
)

func (d *HoleDetector) detectRegions(imageData []byte) []entity.DefectRegion {
	gray, err := decodeGray(imageData, d.minImageSide)
	if err != nil {
		d.log.Debug("skipping detection", zap.Error(err))
		return nil
	}
	defer gray.Close()

	// Поры темнее окружающего материала: инвертированный порог делает их белыми.
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, d.cfg.IntensityThreshold, 255, gocv.ThresholdBinaryInv)

	// Убираем мелкий шум, который можно принять за крошечные поры.
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer kernel.Close()
	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(binary, &opened, gocv.MorphOpen, kernel)

	contours := gocv.FindContours(opened, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []entity.DefectRegion
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area < float64(d.cfg.MinArea) || area > float64(d.cfg.MaxArea) {
			continue
		}

		perimeter := gocv.ArcLength(contour, true)
		if perimeter == 0 {
			continue
		}
		// Круглость: 4π·area/perimeter², идеальный круг = 1.0.
		circularity := 4 * math.Pi * area / (perimeter * perimeter)
		if circularity < d.cfg.CircularityThreshold {
			continue
		}

		rect := gocv.BoundingRect(contour)
		if !d.uniformIntensity(gray, rect) {
			continue
		}

		confidence := d.confidence(area, circularity)
		if confidence < d.cfg.ConfidenceThreshold {
			continue
		}

		region, err := entity.NewDefectRegion(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy(), entity.DefectTypeHole, confidence, d.Name())
		if err != nil {
			d.log.Warn("dropping malformed region", zap.Error(err))
			continue
		}
		regions = append(regions, region)
	}
	return regions
}

// uniformIntensity проверяет, что область тёмная и однородная по яркости.
func (d *HoleDetector) uniformIntensity(gray gocv.Mat, rect image.Rectangle) bool {
	patch := gray.Region(rect)
	defer patch.Close()
	cont := patch.Clone()
	defer cont.Close()

	pixels := cont.ToBytes()
	if len(pixels) == 0 {
		return false
	}

	var sum float64
	for _, p := range pixels {
		sum += float64(p)
	}
	mean := sum / float64(len(pixels))

	var variance float64
	for _, p := range pixels {
		delta := float64(p) - mean
		variance += delta * delta
	}
	std := math.Sqrt(variance / float64(len(pixels)))

	return mean <= float64(d.cfg.IntensityThreshold) && std <= d.cfg.MaxIntensityStd
}

// confidence растёт с круглостью; площадь ближе к середине диапазона надёжнее.
func (d *HoleDetector) confidence(area, circularity float64) float64 {
	circularityConf := 1.0
	if r := 1.0 - d.cfg.CircularityThreshold; r > 0 {
		circularityConf = (circularity - d.cfg.CircularityThreshold) / r
	}

	midArea := float64(d.cfg.MinArea+d.cfg.MaxArea) / 2
	areaConf := math.Max(0.0, 1.0-math.Abs(area-midArea)/midArea)

	confidence := 0.8*circularityConf + 0.2*areaConf
	return math.Max(0.0, math.Min(1.0, confidence))
}
