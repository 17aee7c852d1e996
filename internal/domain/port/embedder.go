package port

import "context"

// EmbeddingProvider — внешний провайдер эмбеддингов (изображения и текст).
// Векторы фиксированной размерности, L2-нормированные. Ошибки провайдера
// всплывают к матчеру и превращаются там в деградированный результат.
type EmbeddingProvider interface {
	// EmbedImage возвращает эмбеддинг изображения.
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)

	// EmbedText возвращает эмбеддинг текстового запроса.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// Dimension возвращает размерность векторов провайдера.
	Dimension() int
}
