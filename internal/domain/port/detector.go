package port

import (
	"context"

	"defect-pipeline/internal/domain/entity"
)

// Detector — общий контракт детектора дефектов.
// Все реализации обязаны деградировать мягко: сбой во время инференса
// не должен прерывать инспекцию.
type Detector interface {
	// Name возвращает имя детектора для журнала и аудита.
	Name() string

	// Detect ищет дефекты на изображении. Никогда не паникует и не
	// возвращает ошибку: при сбое или некорректном входе — пустой список.
	Detect(ctx context.Context, image []byte) []entity.DefectRegion

	// Score возвращает общую оценку дефектности в диапазоне [0,1].
	// При сбое или неприменимости — 0.0.
	Score(ctx context.Context, image []byte) float64
}

// AnomalyTrainer — детектор аномалий, требующий обучения на годных образцах.
// Обучение — единственная мутирующая операция конвейера; здесь ошибки
// допустимы и возвращаются вызывающему.
type AnomalyTrainer interface {
	Detector

	// Train добавляет годные образцы в банк эталонных признаков.
	Train(ctx context.Context, okImages [][]byte) error

	// Trained сообщает, накоплено ли достаточно образцов для оценки.
	Trained() bool
}
