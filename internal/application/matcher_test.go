package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
)

// stubProvider возвращает фиксированные векторы запросов.
type stubProvider struct {
	imageVec []float32
	imageErr error
	textVec  []float32
	textErr  error
}

func (s *stubProvider) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	return s.imageVec, s.imageErr
}

func (s *stubProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return s.textVec, s.textErr
}

func (s *stubProvider) Dimension() int { return len(s.imageVec) }

// stubCatalog отдаёт заранее заданные профили или ошибку.
type stubCatalog struct {
	profiles []entity.DefectProfile
	err      error
}

func (s *stubCatalog) Profiles(ctx context.Context) ([]entity.DefectProfile, error) {
	return s.profiles, s.err
}

func matchConfig() config.MatchConfig {
	return config.MatchConfig{
		SimilarityThreshold: 0.6,
		OKThreshold:         0.85,
		MarginThreshold:     0.05,
		TopK:                3,
		ImageWeight:         0.6,
		TextWeight:          0.4,
	}
}

// profileWithSim создаёт профиль, чьё сходство с запросом [1,0] равно sim.
func profileWithSim(id, defectType string, sim float32) entity.DefectProfile {
	return entity.DefectProfile{
		ID:             id,
		DefectType:     defectType,
		Title:          id,
		ImageEmbedding: []float32{sim, 0},
	}
}

func newTestMatcher(t *testing.T, provider *stubProvider, catalog *stubCatalog) *EmbeddingMatcher {
	t.Helper()
	m, err := NewEmbeddingMatcher(matchConfig(), provider, catalog, nil, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestMatcher_OKOutcome(t *testing.T) {
	provider := &stubProvider{imageVec: []float32{1, 0}}
	catalog := &stubCatalog{profiles: []entity.DefectProfile{
		profileWithSim("clean", entity.DefectTypeOK, 0.85),
		profileWithSim("crack", entity.DefectTypeCrack, 0.30),
	}}
	matcher := newTestMatcher(t, provider, catalog)

	result := matcher.Match(context.Background(), []byte("img"), "")
	require.Equal(t, entity.OutcomeOK, result.Outcome)
	require.NotNil(t, result.Profile)
	require.Equal(t, "clean", result.Profile.ID)
}

func TestMatcher_AmbiguousMarginIsUnknown(t *testing.T) {
	provider := &stubProvider{imageVec: []float32{1, 0}}
	catalog := &stubCatalog{profiles: []entity.DefectProfile{
		profileWithSim("crack", entity.DefectTypeCrack, 0.65),
		profileWithSim("hole", entity.DefectTypeHole, 0.62),
	}}
	matcher := newTestMatcher(t, provider, catalog)

	result := matcher.Match(context.Background(), []byte("img"), "")
	require.Equal(t, entity.OutcomeUnknown, result.Outcome)
	require.Nil(t, result.Profile)
	require.NotEmpty(t, result.Warning)
	require.Len(t, result.TopK, 2)
}

func TestMatcher_LowSimilarityIsUnknown(t *testing.T) {
	provider := &stubProvider{imageVec: []float32{1, 0}}
	catalog := &stubCatalog{profiles: []entity.DefectProfile{
		profileWithSim("crack", entity.DefectTypeCrack, 0.45),
	}}
	matcher := newTestMatcher(t, provider, catalog)

	result := matcher.Match(context.Background(), []byte("img"), "")
	require.Equal(t, entity.OutcomeUnknown, result.Outcome)
	require.Nil(t, result.Profile)
}

func TestMatcher_DefectOutcome(t *testing.T) {
	provider := &stubProvider{imageVec: []float32{1, 0}}
	catalog := &stubCatalog{profiles: []entity.DefectProfile{
		profileWithSim("crack", entity.DefectTypeCrack, 0.82),
		profileWithSim("hole", entity.DefectTypeHole, 0.70),
	}}
	matcher := newTestMatcher(t, provider, catalog)

	result := matcher.Match(context.Background(), []byte("img"), "")
	require.Equal(t, entity.OutcomeDefect, result.Outcome)
	require.NotNil(t, result.Profile)
	require.Equal(t, "crack", result.Profile.ID)
	require.Equal(t, 1, result.TopK[0].Rank)
	require.Equal(t, 2, result.TopK[1].Rank)
}

func TestMatcher_ImageEmbeddingFailureIsUnknown(t *testing.T) {
	provider := &stubProvider{imageErr: errors.New("provider down")}
	catalog := &stubCatalog{profiles: []entity.DefectProfile{
		profileWithSim("crack", entity.DefectTypeCrack, 0.9),
	}}
	matcher := newTestMatcher(t, provider, catalog)

	result := matcher.Match(context.Background(), []byte("img"), "")
	require.Equal(t, entity.OutcomeUnknown, result.Outcome)
	require.Contains(t, result.Warning, "image embedding failed")
	require.Empty(t, result.TopK)
}

func TestMatcher_TextEmbeddingFailureDegradesToImageOnly(t *testing.T) {
	provider := &stubProvider{imageVec: []float32{1, 0}, textErr: errors.New("provider down")}
	catalog := &stubCatalog{profiles: []entity.DefectProfile{
		profileWithSim("crack", entity.DefectTypeCrack, 0.82),
		profileWithSim("hole", entity.DefectTypeHole, 0.70),
	}}
	matcher := newTestMatcher(t, provider, catalog)

	result := matcher.Match(context.Background(), []byte("img"), "thin line")
	require.Equal(t, entity.OutcomeDefect, result.Outcome)
	require.Contains(t, result.Warning, "matched by image only")
}

func TestMatcher_TextQueryShiftsScores(t *testing.T) {
	crack := profileWithSim("crack", entity.DefectTypeCrack, 0.50)
	crack.TextEmbedding = []float32{0, 1}
	hole := profileWithSim("hole", entity.DefectTypeHole, 0.60)

	provider := &stubProvider{imageVec: []float32{1, 0}, textVec: []float32{0, 1}}
	catalog := &stubCatalog{profiles: []entity.DefectProfile{crack, hole}}
	matcher := newTestMatcher(t, provider, catalog)

	// По изображению hole впереди, но текстовый терм выводит crack в топ:
	// crack 0.6*0.5+0.4*1.0 = 0.70, hole 0.6*0.6 = 0.36.
	result := matcher.Match(context.Background(), []byte("img"), "thin line")
	require.Equal(t, entity.OutcomeDefect, result.Outcome)
	require.Equal(t, "crack", result.Profile.ID)
}

func TestMatcher_CatalogFailureIsUnknown(t *testing.T) {
	provider := &stubProvider{imageVec: []float32{1, 0}}
	catalog := &stubCatalog{err: errors.New("store down")}
	matcher := newTestMatcher(t, provider, catalog)

	result := matcher.Match(context.Background(), []byte("img"), "")
	require.Equal(t, entity.OutcomeUnknown, result.Outcome)
	require.Contains(t, result.Warning, "catalog unavailable")
}

func TestMatcher_EmptyCatalogIsUnknown(t *testing.T) {
	provider := &stubProvider{imageVec: []float32{1, 0}}
	matcher := newTestMatcher(t, provider, &stubCatalog{})

	result := matcher.Match(context.Background(), []byte("img"), "")
	require.Equal(t, entity.OutcomeUnknown, result.Outcome)
}

func TestMatcher_TopKIsCapped(t *testing.T) {
	provider := &stubProvider{imageVec: []float32{1, 0}}
	catalog := &stubCatalog{profiles: []entity.DefectProfile{
		profileWithSim("a", entity.DefectTypeCrack, 0.9),
		profileWithSim("b", entity.DefectTypeCrack, 0.8),
		profileWithSim("c", entity.DefectTypeCrack, 0.7),
		profileWithSim("d", entity.DefectTypeCrack, 0.65),
	}}
	matcher := newTestMatcher(t, provider, catalog)

	result := matcher.Match(context.Background(), []byte("img"), "")
	require.Len(t, result.TopK, 3)
	require.Equal(t, "a", result.TopK[0].Profile.ID)
}
