package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"math/rand"

	"defect-pipeline/internal/domain/port"
)

// FakeProvider — детерминированный провайдер эмбеддингов для тестов и
// окружений без ONNX-рантайма. Одинаковый вход всегда даёт одинаковый
// L2-нормированный вектор.
type FakeProvider struct {
	dimension int
}

// NewFakeProvider создаёт фейковый провайдер заданной размерности.
func NewFakeProvider(dimension int) (*FakeProvider, error) {
	if dimension < 1 {
		return nil, errors.New("embedding dimension must be >= 1")
	}
	return &FakeProvider{dimension: dimension}, nil
}

// EmbedImage возвращает псевдослучайный вектор, детерминированный по байтам изображения.
func (p *FakeProvider) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, errors.New("image is empty")
	}
	return p.vectorFor(image), nil
}

// EmbedText возвращает псевдослучайный вектор, детерминированный по тексту.
func (p *FakeProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, errors.New("text is empty")
	}
	return p.vectorFor([]byte(text)), nil
}

// Dimension возвращает размерность векторов.
func (p *FakeProvider) Dimension() int { return p.dimension }

func (p *FakeProvider) vectorFor(data []byte) []float32 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, p.dimension)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

var _ port.EmbeddingProvider = (*FakeProvider)(nil)
