package vision

import (
	"context"

	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
)

// CrackDetector ищет тонкие вытянутые области — трещины.
// Метод: выделение границ, морфологическое замыкание разорванных рёбер,
// контурный анализ и фильтрация по длине и соотношению сторон.
type CrackDetector struct {
	cfg          config.CrackConfig
	minImageSide int
	log          *zap.Logger
}

// NewCrackDetector создаёт детектор трещин. Конфигурация проверяется
// здесь; во время инференса детектор уже не падает.
func NewCrackDetector(cfg config.CrackConfig, minImageSide int, log *zap.Logger) (*CrackDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CrackDetector{cfg: cfg, minImageSide: minImageSide, log: log.Named("crack_detector")}, nil
}

// Name возвращает имя детектора для аудита.
func (d *CrackDetector) Name() string { return "CrackDetector" }

// Detect ищет трещины. Никогда не паникует: при любом сбое — пустой список.
func (d *CrackDetector) Detect(ctx context.Context, imageData []byte) (regions []entity.DefectRegion) {
	_ = ctx
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("crack detection panicked", zap.Any("panic", r))
			regions = nil
		}
	}()
	return d.detectRegions(imageData)
}

// Score возвращает 1.0 при наличии хотя бы одной трещины, иначе 0.0.
func (d *CrackDetector) Score(ctx context.Context, imageData []byte) float64 {
	if len(d.Detect(ctx, imageData)) > 0 {
		return 1.0
	}
	return 0.0
}

var _ port.Detector = (*CrackDetector)(nil)
