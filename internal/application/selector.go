package app

import (
	"errors"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
)

// ErrNoRegions возвращается при попытке выбрать область из пустого списка.
var ErrNoRegions = errors.New("no regions to select from")

// SelectRegion выбирает одну область для кропа по заданной стратегии.
// Неизвестная стратегия трактуется как "largest".
func SelectRegion(regions []entity.DefectRegion, strategy string) (entity.DefectRegion, error) {
	if len(regions) == 0 {
		return entity.DefectRegion{}, ErrNoRegions
	}

	switch strategy {
	case config.StrategyFirst:
		return regions[0], nil
	case config.StrategyHighestConfidence:
		best := regions[0]
		for _, r := range regions[1:] {
			if r.Confidence > best.Confidence ||
				(r.Confidence == best.Confidence && r.Area() > best.Area()) {
				best = r
			}
		}
		return best, nil
	default:
		best := regions[0]
		for _, r := range regions[1:] {
			if r.Area() > best.Area() {
				best = r
			}
		}
		return best, nil
	}
}
