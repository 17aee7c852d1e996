package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
)

const defaultCollection = "defect_profiles"

// ChromemCatalog — каталог профилей с персистентным кэшем эмбеддингов.
// Профили живут в памяти, а их векторы сохраняются в chromem между
// запусками, чтобы не пересчитывать эмбеддинги при каждом старте.
type ChromemCatalog struct {
	inner      *MemoryCatalog
	collection *chromem.Collection
	provider   port.EmbeddingProvider
	log        *zap.Logger
}

// NewChromemCatalog открывает персистентное хранилище и наполняет каталог
// профилями с материализованными эмбеддингами.
func NewChromemCatalog(ctx context.Context, cfg config.CatalogConfig, profiles []entity.DefectProfile, provider port.EmbeddingProvider, log *zap.Logger) (*ChromemCatalog, error) {
	db, err := chromem.NewPersistentDB(cfg.Path, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem store: %w", err)
	}

	name := cfg.Collection
	if name == "" {
		name = defaultCollection
	}
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return provider.EmbedText(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(name, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem collection: %w", err)
	}

	inner, err := NewMemoryCatalog(profiles)
	if err != nil {
		return nil, err
	}

	c := &ChromemCatalog{
		inner:      inner,
		collection: collection,
		provider:   provider,
		log:        log.Named("chromem_catalog"),
	}
	if err := c.materialize(ctx, profiles); err != nil {
		return nil, err
	}
	return c, nil
}

// Profiles возвращает профили с заполненными эмбеддингами.
func (c *ChromemCatalog) Profiles(ctx context.Context) ([]entity.DefectProfile, error) {
	return c.inner.Profiles(ctx)
}

// materialize заполняет эмбеддинги профилей: сначала из кэша,
// при промахе считает провайдером и кладёт результат в кэш.
func (c *ChromemCatalog) materialize(ctx context.Context, profiles []entity.DefectProfile) error {
	for _, profile := range profiles {
		text := profileText(profile)

		textVec, err := c.embedding(ctx, profile.ID, "text", text, func() ([]float32, error) {
			return c.provider.EmbedText(ctx, text)
		})
		if err != nil {
			return fmt.Errorf("failed to embed text for profile %s: %w", profile.ID, err)
		}
		profile.TextEmbedding = textVec

		if len(profile.ReferenceImages) > 0 {
			imageVec, err := c.embedding(ctx, profile.ID, "image", text, func() ([]float32, error) {
				data, err := os.ReadFile(profile.ReferenceImages[0])
				if err != nil {
					return nil, fmt.Errorf("failed to read reference image: %w", err)
				}
				return c.provider.EmbedImage(ctx, data)
			})
			if err != nil {
				return fmt.Errorf("failed to embed reference image for profile %s: %w", profile.ID, err)
			}
			profile.ImageEmbedding = imageVec
		}

		if err := c.inner.Upsert(ctx, profile); err != nil {
			return err
		}
	}
	return nil
}

// embedding возвращает вектор из кэша или вычисляет и кэширует его.
// Ошибки чтения кэша трактуются как промах.
func (c *ChromemCatalog) embedding(ctx context.Context, profileID, kind, content string, compute func() ([]float32, error)) ([]float32, error) {
	docID := profileID + ":" + kind

	if cached := c.cachedEmbedding(ctx, docID, profileID, kind); cached != nil {
		return cached, nil
	}

	vec, err := compute()
	if err != nil {
		return nil, err
	}

	doc := chromem.Document{
		ID:        docID,
		Content:   content,
		Metadata:  map[string]string{"profile_id": profileID, "kind": kind},
		Embedding: vec,
	}
	if err := c.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		c.log.Warn("failed to cache embedding", zap.String("doc_id", docID), zap.Error(err))
	}
	return vec, nil
}

func (c *ChromemCatalog) cachedEmbedding(ctx context.Context, docID, profileID, kind string) []float32 {
	if c.collection.Count() == 0 {
		return nil
	}

	where := map[string]string{"profile_id": profileID, "kind": kind}
	results, err := c.collection.Query(ctx, docID, 1, where, nil)
	if err != nil {
		c.log.Debug("embedding cache miss", zap.String("doc_id", docID), zap.Error(err))
		return nil
	}
	if len(results) == 0 || results[0].ID != docID || len(results[0].Embedding) == 0 {
		return nil
	}
	return results[0].Embedding
}

// profileText собирает текстовое описание профиля для эмбеддинга.
func profileText(p entity.DefectProfile) string {
	parts := []string{p.Title, p.Description}
	if len(p.Keywords) > 0 {
		parts = append(parts, strings.Join(p.Keywords, ", "))
	}
	return strings.Join(parts, ". ")
}

var _ port.ProfileCatalog = (*ChromemCatalog)(nil)
