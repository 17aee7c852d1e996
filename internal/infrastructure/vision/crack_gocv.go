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

func (d *CrackDetector) detectRegions(imageData []byte) []entity.DefectRegion {
	gray, err := decodeGray(imageData, d.minImageSide)
	if err != nil {
		d.log.Debug("skipping detection", zap.Error(err))
		return nil
	}
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, d.cfg.EdgeThresholdLow, d.cfg.EdgeThresholdHigh)

	// Замыкаем разорванные сегменты трещин.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(edges, &closed, gocv.MorphClose, kernel)

	contours := gocv.FindContours(closed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []entity.DefectRegion
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		rect := gocv.BoundingRect(contour)

		length := maxInt(rect.Dx(), rect.Dy())
		width := minInt(rect.Dx(), rect.Dy())
		if length < d.cfg.MinLength {
			continue
		}
		if width > d.cfg.MaxWidth {
			continue
		}

		aspect := math.Inf(1)
		if width > 0 {
			aspect = float64(length) / float64(width)
		}
		if aspect < d.cfg.MinAspectRatio {
			continue
		}

		confidence := d.confidence(contour, length, width, aspect)
		if confidence < d.cfg.ConfidenceThreshold {
			continue
		}

		region, err := entity.NewDefectRegion(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy(), entity.DefectTypeCrack, confidence, d.Name())
		if err != nil {
			d.log.Warn("dropping malformed region", zap.Error(err))
			continue
		}
		regions = append(regions, region)
	}
	return regions
}

// confidence растёт с вытянутостью и прямизной контура.
func (d *CrackDetector) confidence(contour gocv.PointVector, length, width int, aspect float64) float64 {
	aspectConf := math.Min(1.0, (aspect-d.cfg.MinAspectRatio)/7.0+0.6)

	straightness := 0.0
	perimeter := gocv.ArcLength(contour, true)
	if perimeter > 0 {
		diagonal := math.Hypot(float64(length), float64(width))
		straightness = math.Min(1.0, diagonal/perimeter)
	}

	confidence := 0.7*aspectConf + 0.3*straightness
	return math.Max(0.0, math.Min(1.0, confidence))
}
