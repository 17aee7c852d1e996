package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/infrastructure/imaging"
	"defect-pipeline/internal/telemetry"
)

// PipelineOrchestrator связывает визуальную инспекцию и сопоставление
// с базой знаний. Контракт: InspectAndMatch никогда не паникует и всегда
// возвращает структурированный результат, пусть и деградированный.
type PipelineOrchestrator struct {
	visionCfg   config.VisionConfig
	pipelineCfg config.PipelineConfig
	engine      *VisionEngine
	matcher     *EmbeddingMatcher
	metrics     *telemetry.Metrics
	log         *zap.Logger
}

// NewPipelineOrchestrator создаёт оркестратор двухэтапного конвейера.
func NewPipelineOrchestrator(visionCfg config.VisionConfig, pipelineCfg config.PipelineConfig, engine *VisionEngine, matcher *EmbeddingMatcher, metrics *telemetry.Metrics, log *zap.Logger) (*PipelineOrchestrator, error) {
	if err := pipelineCfg.Validate(); err != nil {
		return nil, err
	}
	return &PipelineOrchestrator{
		visionCfg:   visionCfg,
		pipelineCfg: pipelineCfg,
		engine:      engine,
		matcher:     matcher,
		metrics:     metrics,
		log:         log.Named("pipeline"),
	}, nil
}

// InspectAndMatch прогоняет изображение через оба этапа.
// forceMatch запускает сопоставление даже при вердикте OK.
func (p *PipelineOrchestrator) InspectAndMatch(ctx context.Context, image []byte, textQuery string, forceMatch bool) (result *entity.PipelineResult) {
	started := time.Now()
	var warnings []string

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline panicked", zap.Any("panic", r))
			result = &entity.PipelineResult{
				Inspection:       entity.NewErrorResult(entity.InspectionMeta{ProcessingTimeMS: msSince(started)}),
				FallbackToCLIP:   true,
				ProcessingTimeMS: msSince(started),
				Warning:          "pipeline failed unexpectedly",
			}
		}
		p.metrics.ObservePipeline(time.Since(started).Seconds())
	}()

	forceMatch = forceMatch || p.pipelineCfg.ForceMatchOnOK

	var (
		inspection *entity.InspectionResult
		matchImage = image
		fallback   bool
		runMatch   = true
	)

	switch {
	case !p.visionCfg.Enabled || p.engine == nil:
		inspection = entity.NewSkippedResult("")

	default:
		inspection = p.engine.Inspect(ctx, image, "")

		switch {
		case inspection.IsError():
			fallback = true
			warnings = append(warnings, "vision stage failed, matched against the full image")

		case inspection.Result == entity.ResultOK && !forceMatch:
			runMatch = false

		case inspection.HasDefects():
			region, err := SelectRegion(inspection.DefectRegions, p.pipelineCfg.RegionStrategy)
			if err == nil {
				crop, fellBack, cropErr := imaging.CropRegion(image, region, p.pipelineCfg.CropPaddingPercent)
				switch {
				case cropErr != nil:
					warnings = append(warnings, "crop failed, matched against the full image")
				case fellBack:
					warnings = append(warnings, "degenerate crop box, matched against the full image")
				default:
					matchImage = crop
				}
			}
		}
	}

	var match *entity.MatchResult
	if runMatch {
		match = p.matcher.Match(ctx, matchImage, textQuery)
		if match.Warning != "" {
			warnings = append(warnings, match.Warning)
		}
	}

	result = &entity.PipelineResult{
		Inspection:       inspection,
		Match:            match,
		FallbackToCLIP:   fallback,
		ProcessingTimeMS: msSince(started),
		Warning:          joinAll(warnings),
	}

	p.log.Info("pipeline finished",
		zap.String("inspection", inspection.Result),
		zap.Bool("fallback_to_clip", fallback),
		zap.Bool("matched", match != nil),
		zap.Float64("processing_time_ms", result.ProcessingTimeMS))
	return result
}

func joinAll(warnings []string) string {
	out := ""
	for _, w := range warnings {
		out = joinWarnings(out, w)
	}
	return out
}
