package config

import (
	"errors"
	"fmt"
)

// Стратегии выбора области для кропа перед сопоставлением.
const (
	StrategyLargest           = "largest"
	StrategyHighestConfidence = "highest_confidence"
	StrategyFirst             = "first"
)

// CrackConfig — параметры детектора трещин.
type CrackConfig struct {
	Enabled             bool    `koanf:"enabled"`
	MinLength           int     `koanf:"min_length"`
	MaxWidth            int     `koanf:"max_width"`
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	EdgeThresholdLow    float32 `koanf:"edge_threshold_low"`
	EdgeThresholdHigh   float32 `koanf:"edge_threshold_high"`
	MinAspectRatio      float64 `koanf:"min_aspect_ratio"`
}

// Validate проверяет параметры детектора трещин.
func (c CrackConfig) Validate() error {
	if c.MinLength <= 0 {
		return errors.New("crack.min_length must be positive")
	}
	if c.MaxWidth <= 0 {
		return errors.New("crack.max_width must be positive")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.New("crack.confidence_threshold must be within [0,1]")
	}
	if c.MinAspectRatio < 1 {
		return errors.New("crack.min_aspect_ratio must be >= 1")
	}
	if c.EdgeThresholdLow <= 0 || c.EdgeThresholdHigh <= c.EdgeThresholdLow {
		return errors.New("crack edge thresholds must satisfy 0 < low < high")
	}
	return nil
}

// HoleConfig — параметры детектора пор и раковин.
type HoleConfig struct {
	Enabled              bool    `koanf:"enabled"`
	MinArea              int     `koanf:"min_area"`
	MaxArea              int     `koanf:"max_area"`
	CircularityThreshold float64 `koanf:"circularity_threshold"`
	IntensityThreshold   float32 `koanf:"intensity_threshold"`
	MaxIntensityStd      float64 `koanf:"max_intensity_std"`
	ConfidenceThreshold  float64 `koanf:"confidence_threshold"`
}

// Validate проверяет параметры детектора пор.
func (c HoleConfig) Validate() error {
	if c.MinArea <= 0 {
		return errors.New("hole.min_area must be positive")
	}
	if c.MaxArea < c.MinArea {
		return errors.New("hole.max_area must be >= hole.min_area")
	}
	if c.CircularityThreshold < 0 || c.CircularityThreshold > 1 {
		return errors.New("hole.circularity_threshold must be within [0,1]")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.New("hole.confidence_threshold must be within [0,1]")
	}
	if c.IntensityThreshold <= 0 || c.IntensityThreshold >= 255 {
		return errors.New("hole.intensity_threshold must be within (0,255)")
	}
	if c.MaxIntensityStd <= 0 {
		return errors.New("hole.max_intensity_std must be positive")
	}
	return nil
}

// AnomalyConfig — параметры детектора аномалий (банк эталонных признаков).
type AnomalyConfig struct {
	Enabled         bool `koanf:"enabled"`
	MinTrainSamples int  `koanf:"min_train_samples"`

	// FailClosedUntrained управляет поведением необученного банка:
	// false — считать изображение годным (score 0.0),
	// true — считать браком до обучения (score 1.0).
	FailClosedUntrained bool `koanf:"fail_closed_untrained"`

	// LocalizeThreshold — порог карты аномальности для выделения областей.
	LocalizeThreshold float64 `koanf:"localize_threshold"`

	// MinAnomalyArea — минимальная площадь аномальной области в пикселях.
	MinAnomalyArea int `koanf:"min_anomaly_area"`

	// BankPath — файл для сохранения банка между запусками.
	// Пустое значение отключает персистентность.
	BankPath string `koanf:"bank_path"`
}

// Validate проверяет параметры детектора аномалий.
func (c AnomalyConfig) Validate() error {
	if c.MinTrainSamples < 1 {
		return errors.New("anomaly.min_train_samples must be >= 1")
	}
	if c.LocalizeThreshold < 0 || c.LocalizeThreshold > 1 {
		return errors.New("anomaly.localize_threshold must be within [0,1]")
	}
	if c.MinAnomalyArea < 1 {
		return errors.New("anomaly.min_anomaly_area must be >= 1")
	}
	return nil
}

// VisionConfig — неизменяемый снимок конфигурации визуального движка.
type VisionConfig struct {
	Enabled           bool    `koanf:"enabled"`
	AnomalyThreshold  float64 `koanf:"anomaly_threshold"`
	MergeIoUThreshold float64 `koanf:"merge_iou_threshold"`
	MinImageSide      int     `koanf:"min_image_side"`
	ResizeWidth       int     `koanf:"resize_width"`
	ResizeHeight      int     `koanf:"resize_height"`

	Crack   CrackConfig   `koanf:"crack"`
	Hole    HoleConfig    `koanf:"hole"`
	Anomaly AnomalyConfig `koanf:"anomaly"`
}

// Validate проверяет конфигурацию визуального движка.
func (c VisionConfig) Validate() error {
	if c.AnomalyThreshold < 0 || c.AnomalyThreshold > 1 {
		return errors.New("vision.anomaly_threshold must be within [0,1]")
	}
	if c.MergeIoUThreshold <= 0 || c.MergeIoUThreshold > 1 {
		return errors.New("vision.merge_iou_threshold must be within (0,1]")
	}
	if c.MinImageSide < 1 {
		return errors.New("vision.min_image_side must be >= 1")
	}
	if (c.ResizeWidth == 0) != (c.ResizeHeight == 0) {
		return errors.New("vision.resize_width and resize_height must be set together")
	}
	if c.ResizeWidth < 0 || c.ResizeHeight < 0 {
		return errors.New("vision resize dimensions must be non-negative")
	}
	if err := c.Crack.Validate(); err != nil {
		return err
	}
	if err := c.Hole.Validate(); err != nil {
		return err
	}
	return c.Anomaly.Validate()
}

// MatchConfig — неизменяемый снимок конфигурации матчера.
type MatchConfig struct {
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	OKThreshold         float64 `koanf:"ok_threshold"`
	MarginThreshold     float64 `koanf:"margin_threshold"`
	TopK                int     `koanf:"top_k"`
	ImageWeight         float64 `koanf:"image_weight"`
	TextWeight          float64 `koanf:"text_weight"`
}

// Validate проверяет конфигурацию матчера.
func (c MatchConfig) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return errors.New("match.similarity_threshold must be within [0,1]")
	}
	if c.OKThreshold < 0 || c.OKThreshold > 1 {
		return errors.New("match.ok_threshold must be within [0,1]")
	}
	if c.MarginThreshold < 0 || c.MarginThreshold > 1 {
		return errors.New("match.margin_threshold must be within [0,1]")
	}
	if c.TopK < 1 {
		return errors.New("match.top_k must be >= 1")
	}
	if c.ImageWeight < 0 || c.TextWeight < 0 {
		return errors.New("match weights must be non-negative")
	}
	if c.ImageWeight+c.TextWeight <= 0 {
		return errors.New("match weights must not both be zero")
	}
	return nil
}

// PipelineConfig — параметры двухэтапного оркестратора.
type PipelineConfig struct {
	RegionStrategy string `koanf:"region_strategy"`

	// CropPaddingPercent — на сколько процентов расширить рамку дефекта
	// перед кропом (с каждой стороны).
	CropPaddingPercent float64 `koanf:"crop_padding_percent"`

	// ForceMatchOnOK запускает сопоставление даже при вердикте OK.
	ForceMatchOnOK bool `koanf:"force_match_on_ok"`
}

// Validate проверяет конфигурацию оркестратора.
func (c PipelineConfig) Validate() error {
	switch c.RegionStrategy {
	case StrategyLargest, StrategyHighestConfidence, StrategyFirst:
	default:
		return fmt.Errorf("pipeline.region_strategy must be one of largest/highest_confidence/first, got %q", c.RegionStrategy)
	}
	if c.CropPaddingPercent < 0 || c.CropPaddingPercent > 100 {
		return errors.New("pipeline.crop_padding_percent must be within [0,100]")
	}
	return nil
}

// EmbeddingConfig — выбор и параметры провайдера эмбеддингов.
type EmbeddingConfig struct {
	// Provider: "onnx" или "fake".
	Provider  string `koanf:"provider"`
	ModelDir  string `koanf:"model_dir"`
	Dimension int    `koanf:"dimension"`
}

// Validate проверяет конфигурацию провайдера эмбеддингов.
func (c EmbeddingConfig) Validate() error {
	switch c.Provider {
	case "onnx":
		if c.ModelDir == "" {
			return errors.New("embedding.model_dir is required for the onnx provider")
		}
	case "fake":
	default:
		return fmt.Errorf("embedding.provider must be onnx or fake, got %q", c.Provider)
	}
	if c.Dimension < 1 {
		return errors.New("embedding.dimension must be >= 1")
	}
	return nil
}

// CatalogConfig — источник каталога профилей дефектов.
type CatalogConfig struct {
	// Backend: "memory" или "chromem".
	Backend string `koanf:"backend"`

	// SeedFile — YAML-файл с определениями профилей.
	SeedFile string `koanf:"seed_file"`

	// Path — каталог персистентного хранилища (для chromem).
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
}

// Validate проверяет конфигурацию каталога.
func (c CatalogConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "chromem":
		if c.Path == "" {
			return errors.New("catalog.path is required for the chromem backend")
		}
	default:
		return fmt.Errorf("catalog.backend must be memory or chromem, got %q", c.Backend)
	}
	return nil
}

// LoggingConfig — параметры журнала.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate проверяет конфигурацию журнала.
func (c LoggingConfig) Validate() error {
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Format)
	}
	return nil
}

// Config — полная конфигурация процесса. Загружается один раз на старте
// и далее трактуется как неизменяемая.
type Config struct {
	Vision    VisionConfig    `koanf:"vision"`
	Match     MatchConfig     `koanf:"match"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// Validate проверяет все секции; первая же ошибка прерывает загрузку.
func (c *Config) Validate() error {
	if err := c.Vision.Validate(); err != nil {
		return err
	}
	if err := c.Match.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Vision: VisionConfig{
			Enabled:           true,
			AnomalyThreshold:  0.5,
			MergeIoUThreshold: 0.5,
			MinImageSide:      32,
			Crack: CrackConfig{
				Enabled:             true,
				MinLength:           20,
				MaxWidth:            5,
				ConfidenceThreshold: 0.7,
				EdgeThresholdLow:    50,
				EdgeThresholdHigh:   150,
				MinAspectRatio:      3.0,
			},
			Hole: HoleConfig{
				Enabled:              true,
				MinArea:              50,
				MaxArea:              5000,
				CircularityThreshold: 0.6,
				IntensityThreshold:   80,
				MaxIntensityStd:      20,
				ConfidenceThreshold:  0.7,
			},
			Anomaly: AnomalyConfig{
				Enabled:             true,
				MinTrainSamples:     10,
				FailClosedUntrained: false,
				LocalizeThreshold:   0.5,
				MinAnomalyArea:      100,
			},
		},
		Match: MatchConfig{
			SimilarityThreshold: 0.6,
			OKThreshold:         0.85,
			MarginThreshold:     0.05,
			TopK:                3,
			ImageWeight:         0.6,
			TextWeight:          0.4,
		},
		Pipeline: PipelineConfig{
			RegionStrategy:     StrategyLargest,
			CropPaddingPercent: 10,
			ForceMatchOnOK:     false,
		},
		Embedding: EmbeddingConfig{
			Provider:  "fake",
			Dimension: 512,
		},
		Catalog: CatalogConfig{
			Backend:    "memory",
			Collection: "defect_profiles",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
