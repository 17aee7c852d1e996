package entity

import (
	"errors"
	"fmt"
)

// Известные типы дефектов. Профили каталога могут добавлять свои типы.
const (
	DefectTypeCrack   = "crack"
	DefectTypeHole    = "hole"
	DefectTypeAnomaly = "anomaly"
)

// DefectRegion представляет область с обнаруженным дефектом.
// Значение неизменяемо после создания через NewDefectRegion.
type DefectRegion struct {
	X            int     `json:"x"`
	Y            int     `json:"y"`
	W            int     `json:"w"`
	H            int     `json:"h"`
	DefectType   string  `json:"defect_type"`
	Confidence   float64 `json:"confidence"`
	DetectorName string  `json:"detector_name"`
}

// NewDefectRegion создаёт область дефекта и проверяет корректность полей.
// Некорректные данные отклоняются сразу, а не во время инференса.
func NewDefectRegion(x, y, w, h int, defectType string, confidence float64, detectorName string) (DefectRegion, error) {
	if x < 0 || y < 0 || w < 0 || h < 0 {
		return DefectRegion{}, fmt.Errorf("region geometry must be non-negative, got (%d,%d,%d,%d)", x, y, w, h)
	}
	if confidence < 0.0 || confidence > 1.0 {
		return DefectRegion{}, fmt.Errorf("confidence must be within [0,1], got %v", confidence)
	}
	if defectType == "" {
		return DefectRegion{}, errors.New("defect_type must be a non-empty string")
	}
	if detectorName == "" {
		return DefectRegion{}, errors.New("detector_name must be a non-empty string")
	}
	return DefectRegion{
		X:            x,
		Y:            y,
		W:            w,
		H:            h,
		DefectType:   defectType,
		Confidence:   confidence,
		DetectorName: detectorName,
	}, nil
}

// Area возвращает площадь области в пикселях.
func (r DefectRegion) Area() int {
	return r.W * r.H
}

// Center возвращает координаты центра области.
func (r DefectRegion) Center() (x, y int) {
	return r.X + r.W/2, r.Y + r.H/2
}

// InBounds проверяет, что область целиком лежит в границах изображения.
func (r DefectRegion) InBounds(imageWidth, imageHeight int) bool {
	if r.W <= 0 || r.H <= 0 {
		return false
	}
	if r.X+r.W > imageWidth || r.Y+r.H > imageHeight {
		return false
	}
	return true
}
