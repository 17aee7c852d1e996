package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"defect-pipeline/internal/domain/entity"
)

type seedFile struct {
	Profiles []seedProfile `yaml:"profiles"`
}

type seedProfile struct {
	ID              string   `yaml:"id"`
	DefectType      string   `yaml:"defect_type"`
	Title           string   `yaml:"title"`
	Description     string   `yaml:"description"`
	Severity        string   `yaml:"severity"`
	Keywords        []string `yaml:"keywords"`
	ReferenceImages []string `yaml:"reference_images"`
}

// LoadSeedFile читает YAML-файл с определениями профилей дефектов.
// Эмбеддинги в файле не хранятся, их считает каталог при инициализации.
func LoadSeedFile(path string) ([]entity.DefectProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(seed.Profiles) == 0 {
		return nil, fmt.Errorf("seed file %s defines no profiles", path)
	}

	profiles := make([]entity.DefectProfile, 0, len(seed.Profiles))
	for _, s := range seed.Profiles {
		profiles = append(profiles, entity.DefectProfile{
			ID:              s.ID,
			DefectType:      s.DefectType,
			Title:           s.Title,
			Description:     s.Description,
			Severity:        s.Severity,
			Keywords:        s.Keywords,
			ReferenceImages: s.ReferenceImages,
		})
	}
	if err := validateProfiles(profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}
