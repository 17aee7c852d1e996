package port

import (
	"context"

	"defect-pipeline/internal/domain/entity"
)

// ProfileCatalog — read-only каталог эталонных профилей дефектов.
// Каталог мал, матчер сканирует его линейно на каждый запрос.
type ProfileCatalog interface {
	// Profiles возвращает все профили в порядке добавления.
	Profiles(ctx context.Context) ([]entity.DefectProfile, error)
}
