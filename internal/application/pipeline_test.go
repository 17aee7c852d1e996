package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
)

// capturingProvider запоминает последнее изображение, переданное на эмбеддинг.
type capturingProvider struct {
	stubProvider
	lastImage []byte
}

func (c *capturingProvider) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	c.lastImage = image
	return c.stubProvider.EmbedImage(ctx, image)
}

func newTestPipeline(t *testing.T, visionCfg config.VisionConfig, pipelineCfg config.PipelineConfig, detectors []port.Detector, provider *capturingProvider, catalog *stubCatalog) *PipelineOrchestrator {
	t.Helper()
	engine := newTestEngine(t, visionCfg, detectors, nil)
	matcher := newTestMatcher(t, &provider.stubProvider, catalog)
	matcher.provider = provider

	pipeline, err := NewPipelineOrchestrator(visionCfg, pipelineCfg, engine, matcher, nil, zap.NewNop())
	require.NoError(t, err)
	return pipeline
}

func defectCatalog() *stubCatalog {
	return &stubCatalog{profiles: []entity.DefectProfile{
		profileWithSim("crack", entity.DefectTypeCrack, 0.82),
		profileWithSim("hole", entity.DefectTypeHole, 0.70),
	}}
}

func TestPipeline_VisionDisabledMatchesFullImage(t *testing.T) {
	visionCfg := config.Default().Vision
	visionCfg.Enabled = false
	provider := &capturingProvider{stubProvider: stubProvider{imageVec: []float32{1, 0}}}

	pipeline := newTestPipeline(t, visionCfg, config.Default().Pipeline, nil, provider, defectCatalog())

	img := testImage(t, 64, 48)
	result := pipeline.InspectAndMatch(context.Background(), img, "", false)

	require.Equal(t, entity.ResultNotAvailable, result.Inspection.Result)
	require.False(t, result.FallbackToCLIP)
	require.NotNil(t, result.Match)
	require.Equal(t, entity.OutcomeDefect, result.Match.Outcome)
	require.Equal(t, img, provider.lastImage)
}

func TestPipeline_VisionErrorFallsBackToFullImage(t *testing.T) {
	provider := &capturingProvider{stubProvider: stubProvider{imageVec: []float32{1, 0}}}
	pipeline := newTestPipeline(t, config.Default().Vision, config.Default().Pipeline, nil, provider, defectCatalog())

	// Нечитаемое изображение валит визуальный этап, но не конвейер.
	result := pipeline.InspectAndMatch(context.Background(), []byte("garbage"), "", false)

	require.True(t, result.Inspection.IsError())
	require.True(t, result.FallbackToCLIP)
	require.NotNil(t, result.Match)
	require.Contains(t, result.Warning, "vision stage failed")
}

func TestPipeline_OKSkipsMatching(t *testing.T) {
	provider := &capturingProvider{stubProvider: stubProvider{imageVec: []float32{1, 0}}}
	pipeline := newTestPipeline(t, config.Default().Vision, config.Default().Pipeline, []port.Detector{&stubDetector{name: "quiet"}}, provider, defectCatalog())

	result := pipeline.InspectAndMatch(context.Background(), testImage(t, 64, 48), "", false)

	require.Equal(t, entity.ResultOK, result.Inspection.Result)
	require.Nil(t, result.Match)
	require.False(t, result.FallbackToCLIP)
}

func TestPipeline_ForceMatchOnOK(t *testing.T) {
	provider := &capturingProvider{stubProvider: stubProvider{imageVec: []float32{1, 0}}}
	img := testImage(t, 64, 48)
	pipeline := newTestPipeline(t, config.Default().Vision, config.Default().Pipeline, []port.Detector{&stubDetector{name: "quiet"}}, provider, defectCatalog())

	result := pipeline.InspectAndMatch(context.Background(), img, "", true)

	require.Equal(t, entity.ResultOK, result.Inspection.Result)
	require.NotNil(t, result.Match)
	// Принудительное сопоставление идёт по полному кадру.
	require.Equal(t, img, provider.lastImage)
}

func TestPipeline_NGMatchesCroppedRegion(t *testing.T) {
	provider := &capturingProvider{stubProvider: stubProvider{imageVec: []float32{1, 0}}}
	found := region(t, 10, 10, 20, 16, 0.9)
	detectors := []port.Detector{&stubDetector{name: "crack", regions: []entity.DefectRegion{found}}}

	img := testImage(t, 64, 48)
	pipeline := newTestPipeline(t, config.Default().Vision, config.Default().Pipeline, detectors, provider, defectCatalog())

	result := pipeline.InspectAndMatch(context.Background(), img, "", false)

	require.Equal(t, entity.ResultNG, result.Inspection.Result)
	require.NotNil(t, result.Match)
	require.NotEqual(t, img, provider.lastImage)
	require.NotEmpty(t, provider.lastImage)
}

func TestPipeline_MatchWarningPropagates(t *testing.T) {
	provider := &capturingProvider{stubProvider: stubProvider{imageVec: []float32{1, 0}}}
	catalog := &stubCatalog{profiles: []entity.DefectProfile{
		profileWithSim("crack", entity.DefectTypeCrack, 0.45),
	}}
	visionCfg := config.Default().Vision
	visionCfg.Enabled = false

	pipeline := newTestPipeline(t, visionCfg, config.Default().Pipeline, nil, provider, catalog)

	result := pipeline.InspectAndMatch(context.Background(), testImage(t, 64, 48), "", false)
	require.Equal(t, entity.OutcomeUnknown, result.Match.Outcome)
	require.Contains(t, result.Warning, "below similarity threshold")
}

func TestPipeline_ProcessingTimeIsSet(t *testing.T) {
	provider := &capturingProvider{stubProvider: stubProvider{imageVec: []float32{1, 0}}}
	pipeline := newTestPipeline(t, config.Default().Vision, config.Default().Pipeline, nil, provider, defectCatalog())

	result := pipeline.InspectAndMatch(context.Background(), testImage(t, 64, 48), "", true)
	require.GreaterOrEqual(t, result.ProcessingTimeMS, 0.0)
}
