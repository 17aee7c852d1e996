package port

import "defect-pipeline/internal/domain/entity"

// FeatureExtractor вычисляет вектор признаков изображения для банка
// эталонов детектора аномалий. Одинаковое изображение обязано давать
// одинаковый вектор.
type FeatureExtractor interface {
	// Extract возвращает вектор признаков фиксированной длины.
	Extract(image []byte) ([]float64, error)
}

// AnomalyLocalizer выделяет пространственно аномальные области по карте
// аномальности. При сбое или отсутствии аномалий — пустой список.
type AnomalyLocalizer interface {
	// Localize возвращает связные области карты аномальности со значением
	// выше threshold и площадью не меньше minArea.
	Localize(image []byte, threshold float64, minArea int) []entity.DefectRegion
}
