package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
	"defect-pipeline/internal/infrastructure/imaging"
	"defect-pipeline/internal/telemetry"
)

// ErrAnomalyDisabled возвращается при попытке обучения без детектора аномалий.
var ErrAnomalyDisabled = errors.New("anomaly detector is not configured")

// VisionEngine оркестрирует детекторы дефектов над одним изображением.
// Публичный контракт: Inspect никогда не паникует и не возвращает ошибку,
// при критическом сбое отдаётся консервативный NG-результат.
type VisionEngine struct {
	cfg       config.VisionConfig
	detectors []port.Detector
	anomaly   port.AnomalyTrainer
	metrics   *telemetry.Metrics
	log       *zap.Logger
}

// NewVisionEngine создаёт движок. Детектор аномалий может быть nil,
// тогда anomaly_score всегда 0.0.
func NewVisionEngine(cfg config.VisionConfig, detectors []port.Detector, anomaly port.AnomalyTrainer, metrics *telemetry.Metrics, log *zap.Logger) (*VisionEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &VisionEngine{
		cfg:       cfg,
		detectors: detectors,
		anomaly:   anomaly,
		metrics:   metrics,
		log:       log.Named("vision_engine"),
	}, nil
}

// Inspect анализирует изображение всеми детекторами и возвращает вердикт.
func (e *VisionEngine) Inspect(ctx context.Context, image []byte, imageID string) (result *entity.InspectionResult) {
	started := time.Now()
	if imageID == "" {
		imageID = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("inspection panicked", zap.String("image_id", imageID), zap.Any("panic", r))
			result = entity.NewErrorResult(entity.InspectionMeta{
				ImageID:          imageID,
				ProcessingTimeMS: msSince(started),
				AnomalyThreshold: e.cfg.AnomalyThreshold,
			})
		}
		e.metrics.ObserveInspection(result.Result, time.Since(started).Seconds())
	}()

	width, height, err := imaging.Dimensions(image)
	if err != nil {
		e.log.Warn("undecodable image", zap.String("image_id", imageID), zap.Error(err))
		return entity.NewErrorResult(entity.InspectionMeta{
			ImageID:          imageID,
			ProcessingTimeMS: msSince(started),
			AnomalyThreshold: e.cfg.AnomalyThreshold,
		})
	}

	if e.cfg.ResizeWidth > 0 && e.cfg.ResizeHeight > 0 {
		if resized, err := imaging.ResizeBytes(image, e.cfg.ResizeWidth, e.cfg.ResizeHeight); err == nil {
			image = resized
			width, height = e.cfg.ResizeWidth, e.cfg.ResizeHeight
		} else {
			e.log.Warn("resize failed, using original image", zap.String("image_id", imageID), zap.Error(err))
		}
	}

	var (
		anomalyScore float64
		candidates   []entity.DefectRegion
		used         []string
	)

	if e.anomaly != nil && e.cfg.Anomaly.Enabled {
		anomalyScore = e.runScore(ctx, e.anomaly, image)
		candidates = append(candidates, e.runDetect(ctx, e.anomaly, image)...)
		used = append(used, e.anomaly.Name())
	}

	for _, detector := range e.detectors {
		candidates = append(candidates, e.runDetect(ctx, detector, image)...)
		used = append(used, detector.Name())
	}

	merged := MergeRegions(candidates, e.cfg.MergeIoUThreshold)

	// Области за границами изображения не должны доходить до кропа.
	regions := merged[:0]
	for _, r := range merged {
		if r.InBounds(width, height) {
			regions = append(regions, r)
		} else {
			e.log.Warn("dropping out-of-bounds region",
				zap.String("image_id", imageID),
				zap.String("detector", r.DetectorName))
		}
	}

	meta := entity.InspectionMeta{
		ImageID:          imageID,
		ProcessingTimeMS: msSince(started),
		DetectorsUsed:    used,
		AnomalyThreshold: e.cfg.AnomalyThreshold,
	}

	if anomalyScore >= e.cfg.AnomalyThreshold || len(regions) > 0 {
		e.log.Info("inspection verdict NG",
			zap.String("image_id", imageID),
			zap.Float64("anomaly_score", anomalyScore),
			zap.Int("regions", len(regions)))
		return entity.NewNGResult(anomalyScore, regions, meta)
	}

	e.log.Debug("inspection verdict OK",
		zap.String("image_id", imageID),
		zap.Float64("anomaly_score", anomalyScore))
	return entity.NewOKResult(anomalyScore, meta)
}

// TrainAnomaly обучает банк эталонных признаков на годных образцах.
// Единственная операция движка, которой разрешено возвращать ошибку.
func (e *VisionEngine) TrainAnomaly(ctx context.Context, okImages [][]byte) error {
	if e.anomaly == nil {
		return ErrAnomalyDisabled
	}
	return e.anomaly.Train(ctx, okImages)
}

// runDetect изолирует сбой одного детектора от остальных.
func (e *VisionEngine) runDetect(ctx context.Context, d port.Detector, image []byte) (regions []entity.DefectRegion) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("detector panicked", zap.String("detector", d.Name()), zap.Any("panic", r))
			e.metrics.DetectorFailure(d.Name())
			regions = nil
		}
	}()
	return d.Detect(ctx, image)
}

func (e *VisionEngine) runScore(ctx context.Context, d port.Detector, image []byte) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("detector score panicked", zap.String("detector", d.Name()), zap.Any("panic", r))
			e.metrics.DetectorFailure(d.Name())
			score = 0.0
		}
	}()
	return d.Score(ctx, image)
}

func msSince(started time.Time) float64 {
	return float64(time.Since(started).Microseconds()) / 1000.0
}
