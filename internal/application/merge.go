package app

import (
	"sort"

	"defect-pipeline/internal/domain/entity"
)

// IoU возвращает отношение пересечения к объединению двух областей.
// Для вырожденных областей возвращает 0.
func IoU(a, b entity.DefectRegion) float64 {
	ix := maxInt(a.X, b.X)
	iy := maxInt(a.Y, b.Y)
	ix2 := minInt(a.X+a.W, b.X+b.W)
	iy2 := minInt(a.Y+a.H, b.Y+b.H)

	if ix2 <= ix || iy2 <= iy {
		return 0
	}
	inter := float64((ix2 - ix) * (iy2 - iy))
	union := float64(a.Area()+b.Area()) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// MergeRegions подавляет дубли между детекторами: области сортируются по
// убыванию уверенности, и каждая следующая отбрасывается, если пересекается
// с уже принятой сильнее порога IoU. Порядок входа при равной уверенности
// сохраняется, поэтому результат детерминирован.
func MergeRegions(regions []entity.DefectRegion, iouThreshold float64) []entity.DefectRegion {
	if len(regions) <= 1 {
		return regions
	}

	sorted := make([]entity.DefectRegion, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]entity.DefectRegion, 0, len(sorted))
	for _, candidate := range sorted {
		suppressed := false
		for _, winner := range kept {
			if IoU(candidate, winner) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
