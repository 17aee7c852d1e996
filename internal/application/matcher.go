package app

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
	"defect-pipeline/internal/telemetry"
)

// EmbeddingMatcher сопоставляет изображение с каталогом профилей дефектов.
// Контракт: Match никогда не паникует и не возвращает ошибку; сбой
// провайдера или каталога даёт UNKNOWN с предупреждением.
type EmbeddingMatcher struct {
	cfg      config.MatchConfig
	provider port.EmbeddingProvider
	catalog  port.ProfileCatalog
	metrics  *telemetry.Metrics
	log      *zap.Logger
}

// NewEmbeddingMatcher создаёт матчер с проверкой конфигурации.
func NewEmbeddingMatcher(cfg config.MatchConfig, provider port.EmbeddingProvider, catalog port.ProfileCatalog, metrics *telemetry.Metrics, log *zap.Logger) (*EmbeddingMatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &EmbeddingMatcher{
		cfg:      cfg,
		provider: provider,
		catalog:  catalog,
		metrics:  metrics,
		log:      log.Named("embedding_matcher"),
	}, nil
}

// Match находит наиболее похожие профили и принимает решение об исходе.
// Текстовый запрос опционален: без него вес текста перераспределяется
// на изображение.
func (m *EmbeddingMatcher) Match(ctx context.Context, image []byte, textQuery string) (result *entity.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("matching panicked", zap.Any("panic", r))
			result = m.unknown("matching failed unexpectedly")
		}
		m.metrics.ObserveMatch(result.Outcome)
	}()

	imageVec, err := m.provider.EmbedImage(ctx, image)
	if err != nil {
		m.log.Warn("image embedding failed", zap.Error(err))
		return m.unknown("image embedding failed: " + err.Error())
	}

	var (
		textVec []float32
		warning string
	)
	if textQuery != "" {
		textVec, err = m.provider.EmbedText(ctx, textQuery)
		if err != nil {
			// Деградация до поиска только по изображению.
			m.log.Warn("text embedding failed", zap.Error(err))
			warning = "text embedding failed, matched by image only"
			textVec = nil
		}
	}

	profiles, err := m.catalog.Profiles(ctx)
	if err != nil {
		m.log.Warn("catalog unavailable", zap.Error(err))
		return m.unknown("profile catalog unavailable: " + err.Error())
	}
	if len(profiles) == 0 {
		return m.unknown("profile catalog is empty")
	}

	topK := m.rank(profiles, imageVec, textVec)
	result = m.decide(topK)
	result.Warning = joinWarnings(result.Warning, warning)

	m.log.Info("match decided",
		zap.String("outcome", result.Outcome),
		zap.Float64("confidence", result.Confidence),
		zap.Int("candidates", len(topK)))
	return result
}

// rank считает комбинированное сходство для каждого профиля и возвращает
// топ-K кандидатов. Сортировка стабильна: при равных оценках сохраняется
// порядок каталога.
func (m *EmbeddingMatcher) rank(profiles []entity.DefectProfile, imageVec, textVec []float32) []entity.TopKMatch {
	imageWeight, textWeight := m.cfg.ImageWeight, m.cfg.TextWeight
	if textVec == nil {
		imageWeight, textWeight = imageWeight+textWeight, 0
	}
	total := imageWeight + textWeight

	scored := make([]entity.TopKMatch, 0, len(profiles))
	for _, profile := range profiles {
		var score float64
		if len(profile.ImageEmbedding) > 0 {
			score += imageWeight * cosineSimilarity(imageVec, profile.ImageEmbedding)
		}
		if textVec != nil && len(profile.TextEmbedding) > 0 {
			score += textWeight * cosineSimilarity(textVec, profile.TextEmbedding)
		} else if textVec == nil && len(profile.ImageEmbedding) == 0 && len(profile.TextEmbedding) > 0 {
			// Профиль без эталонного изображения сравнивается по тексту.
			score += imageWeight * cosineSimilarity(imageVec, profile.TextEmbedding)
		}
		scored = append(scored, entity.TopKMatch{Profile: profile, Confidence: score / total})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})

	if len(scored) > m.cfg.TopK {
		scored = scored[:m.cfg.TopK]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored
}

// decide применяет решающую машину исходов к ранжированному списку.
func (m *EmbeddingMatcher) decide(topK []entity.TopKMatch) *entity.MatchResult {
	top1 := topK[0]
	top2Confidence := 0.0
	if len(topK) > 1 {
		top2Confidence = topK[1].Confidence
	}

	switch {
	case top1.Confidence < m.cfg.SimilarityThreshold:
		return &entity.MatchResult{
			Outcome:    entity.OutcomeUnknown,
			Confidence: top1.Confidence,
			Warning:    "top match below similarity threshold",
			TopK:       topK,
		}
	case top1.Confidence-top2Confidence < m.cfg.MarginThreshold:
		return &entity.MatchResult{
			Outcome:    entity.OutcomeUnknown,
			Confidence: top1.Confidence,
			Warning:    "ambiguous match, margin below threshold",
			TopK:       topK,
		}
	case top1.Profile.DefectType == entity.DefectTypeOK:
		if top1.Confidence >= m.cfg.OKThreshold {
			profile := top1.Profile
			return &entity.MatchResult{
				Outcome:    entity.OutcomeOK,
				Profile:    &profile,
				Confidence: top1.Confidence,
				TopK:       topK,
			}
		}
		return &entity.MatchResult{
			Outcome:    entity.OutcomeUnknown,
			Confidence: top1.Confidence,
			Warning:    "OK-like match below ok threshold",
			TopK:       topK,
		}
	default:
		profile := top1.Profile
		return &entity.MatchResult{
			Outcome:    entity.OutcomeDefect,
			Profile:    &profile,
			Confidence: top1.Confidence,
			TopK:       topK,
		}
	}
}

func (m *EmbeddingMatcher) unknown(warning string) *entity.MatchResult {
	return &entity.MatchResult{
		Outcome: entity.OutcomeUnknown,
		Warning: warning,
		TopK:    []entity.TopKMatch{},
	}
}

// cosineSimilarity считает скалярное произведение L2-нормированных векторов,
// обрезанное до [0,1]. Несовпадение размерностей даёт 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	if dot < 0 {
		return 0
	}
	if dot > 1 {
		return 1
	}
	return dot
}

func joinWarnings(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "; " + b
	}
}
