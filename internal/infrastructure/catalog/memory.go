package catalog

import (
	"context"
	"fmt"
	"sync"

	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
)

// MemoryCatalog — in-memory каталог профилей дефектов.
type MemoryCatalog struct {
	mu       sync.RWMutex
	profiles []entity.DefectProfile
}

// NewMemoryCatalog создаёт каталог с начальным набором профилей.
// Идентификаторы профилей должны быть уникальны.
func NewMemoryCatalog(profiles []entity.DefectProfile) (*MemoryCatalog, error) {
	if err := validateProfiles(profiles); err != nil {
		return nil, err
	}
	c := &MemoryCatalog{profiles: make([]entity.DefectProfile, len(profiles))}
	copy(c.profiles, profiles)
	return c, nil
}

// Profiles возвращает копию списка профилей.
func (c *MemoryCatalog) Profiles(ctx context.Context) ([]entity.DefectProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]entity.DefectProfile, len(c.profiles))
	copy(out, c.profiles)
	return out, nil
}

// Upsert добавляет профиль или заменяет существующий с тем же ID.
func (c *MemoryCatalog) Upsert(ctx context.Context, profile entity.DefectProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile.ID == "" {
		return fmt.Errorf("profile id is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.profiles {
		if c.profiles[i].ID == profile.ID {
			c.profiles[i] = profile
			return nil
		}
	}
	c.profiles = append(c.profiles, profile)
	return nil
}

func validateProfiles(profiles []entity.DefectProfile) error {
	seen := make(map[string]struct{}, len(profiles))
	for _, p := range profiles {
		if p.ID == "" {
			return fmt.Errorf("profile %q has an empty id", p.Title)
		}
		if p.DefectType == "" {
			return fmt.Errorf("profile %s has an empty defect type", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate profile id %s", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Проверка реализации интерфейса
var _ port.ProfileCatalog = (*MemoryCatalog)(nil)
