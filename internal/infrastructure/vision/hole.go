package vision

import (
	"context"

	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
)

// HoleDetector ищет тёмные круглые области — поры и раковины.
// Метод: пороговая бинаризация тёмных участков, контурный анализ,
// фильтрация по площади, круглости и однородности яркости.
type HoleDetector struct {
	cfg          config.HoleConfig
	minImageSide int
	log          *zap.Logger
}

// NewHoleDetector создаёт детектор пор с проверкой конфигурации.
func NewHoleDetector(cfg config.HoleConfig, minImageSide int, log *zap.Logger) (*HoleDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HoleDetector{cfg: cfg, minImageSide: minImageSide, log: log.Named("hole_detector")}, nil
}

// Name возвращает имя детектора для аудита.
func (d *HoleDetector) Name() string { return "HoleDetector" }

// Detect ищет поры. Никогда не паникует: при любом сбое — пустой список.
func (d *HoleDetector) Detect(ctx context.Context, imageData []byte) (regions []entity.DefectRegion) {
	_ = ctx
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("hole detection panicked", zap.Any("panic", r))
			regions = nil
		}
	}()
	return d.detectRegions(imageData)
}

// Score возвращает 1.0 при наличии хотя бы одной поры, иначе 0.0.
func (d *HoleDetector) Score(ctx context.Context, imageData []byte) float64 {
	if len(d.Detect(ctx, imageData)) > 0 {
		return 1.0
	}
	return 0.0
}

var _ port.Detector = (*HoleDetector)(nil)
