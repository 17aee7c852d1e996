package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/domain/entity"
	"defect-pipeline/internal/domain/port"
)

// bank — неизменяемый снимок обученного состояния. Читатели берут его
// атомарно и работают без блокировок.
type bank struct {
	vectors [][]float64
	std     []float64
}

// bankFile — формат файла персистентного банка.
type bankFile struct {
	Samples [][]float64 `json:"samples"`
}

// Detector оценивает аномальность изображения по расстоянию до банка
// нормальных образцов. Локализация делегируется извлекателю признаков,
// если тот умеет строить карту аномальности.
type Detector struct {
	cfg       config.AnomalyConfig
	extractor port.FeatureExtractor
	localizer port.AnomalyLocalizer
	log       *zap.Logger

	trainMu sync.Mutex
	samples [][]float64
	current atomic.Pointer[bank]
}

// NewDetector создаёт детектор аномалий. Если задан anomaly.bank_path и
// файл существует, накопленные образцы загружаются с диска.
func NewDetector(cfg config.AnomalyConfig, extractor port.FeatureExtractor, log *zap.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if extractor == nil {
		return nil, fmt.Errorf("feature extractor is required")
	}

	d := &Detector{cfg: cfg, extractor: extractor, log: log.Named("anomaly_detector")}
	if localizer, ok := extractor.(port.AnomalyLocalizer); ok {
		d.localizer = localizer
	}

	if err := d.loadBank(); err != nil {
		return nil, err
	}
	return d, nil
}

// Name возвращает имя детектора для аудита.
func (d *Detector) Name() string { return "AnomalyDetector" }

// Trained сообщает, накоплено ли достаточно нормальных образцов.
func (d *Detector) Trained() bool { return d.current.Load() != nil }

// Train добавляет нормальные образцы в банк. Вызовы накапливаются:
// повторное обучение расширяет банк, а не заменяет его. Любое
// изображение, из которого не удалось извлечь признаки, прерывает
// обучение целиком, и банк остаётся в прежнем состоянии.
func (d *Detector) Train(ctx context.Context, okImages [][]byte) error {
	d.trainMu.Lock()
	defer d.trainMu.Unlock()

	extracted := make([][]float64, 0, len(okImages))
	for i, img := range okImages {
		if err := ctx.Err(); err != nil {
			return err
		}
		features, err := d.extractor.Extract(img)
		if err != nil {
			return fmt.Errorf("failed to extract features from sample %d: %w", i, err)
		}
		extracted = append(extracted, features)
	}

	samples := append(d.samples, extracted...)
	if err := d.publish(samples); err != nil {
		return err
	}
	return d.saveBank()
}

// Detect локализует аномалии. До обучения банка пространственного
// сигнала нет, возвращается пустой список.
func (d *Detector) Detect(ctx context.Context, imageData []byte) []entity.DefectRegion {
	_ = ctx
	if d.localizer == nil || d.current.Load() == nil {
		return nil
	}
	return d.localizer.Localize(imageData, d.cfg.LocalizeThreshold, d.cfg.MinAnomalyArea)
}

// Score возвращает аномальность в диапазоне [0, 1]. Необученный банк
// даёт 0.0 (или 1.0 при включённом fail_closed_untrained). Сбой
// извлечения признаков трактуется так же, как необученное состояние.
func (d *Detector) Score(ctx context.Context, imageData []byte) float64 {
	_ = ctx
	snapshot := d.current.Load()
	if snapshot == nil {
		return d.untrainedScore("anomaly bank is not trained")
	}

	features, err := d.extractor.Extract(imageData)
	if err != nil {
		d.log.Warn("feature extraction failed", zap.Error(err))
		return d.untrainedScore("feature extraction failed")
	}
	if len(features) != len(snapshot.std) {
		d.log.Warn("feature dimension mismatch with the trained bank",
			zap.Int("got", len(features)),
			zap.Int("want", len(snapshot.std)))
		return d.untrainedScore("feature dimension mismatch")
	}

	// Минимальное нормированное расстояние до образца банка.
	nearest := math.Inf(1)
	for _, vec := range snapshot.vectors {
		dist := snapshot.zDistance(features, vec)
		if dist < nearest {
			nearest = dist
		}
	}
	return math.Min(1.0, nearest/3.0)
}

func (d *Detector) untrainedScore(reason string) float64 {
	if d.cfg.FailClosedUntrained {
		d.log.Warn("scoring fail-closed", zap.String("reason", reason))
		return 1.0
	}
	d.log.Debug("scoring fail-open", zap.String("reason", reason))
	return 0.0
}

// publish сохраняет образцы и публикует новый снимок банка, когда их
// накоплено достаточно. Вызывается под trainMu.
func (d *Detector) publish(samples [][]float64) error {
	if len(samples) < d.cfg.MinTrainSamples {
		d.samples = samples
		d.log.Info("anomaly bank is below the training minimum",
			zap.Int("samples", len(samples)),
			zap.Int("required", d.cfg.MinTrainSamples))
		return nil
	}

	next, err := buildBank(samples)
	if err != nil {
		return err
	}

	d.samples = samples
	d.current.Store(next)
	d.log.Info("anomaly bank trained", zap.Int("samples", len(samples)))
	return nil
}

// loadBank восстанавливает накопленные образцы из anomaly.bank_path.
// Отсутствующий файл — нормальное необученное состояние.
func (d *Detector) loadBank() error {
	if d.cfg.BankPath == "" {
		return nil
	}

	data, err := os.ReadFile(d.cfg.BankPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read anomaly bank: %w", err)
	}

	var file bankFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse anomaly bank %s: %w", d.cfg.BankPath, err)
	}
	if len(file.Samples) == 0 {
		return nil
	}

	d.trainMu.Lock()
	defer d.trainMu.Unlock()
	return d.publish(file.Samples)
}

// saveBank записывает накопленные образцы на диск через временный файл.
// Вызывается под trainMu.
func (d *Detector) saveBank() error {
	if d.cfg.BankPath == "" {
		return nil
	}

	data, err := json.Marshal(bankFile{Samples: d.samples})
	if err != nil {
		return fmt.Errorf("failed to encode anomaly bank: %w", err)
	}

	tmp := d.cfg.BankPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(d.cfg.BankPath), 0o755); err != nil {
		return fmt.Errorf("failed to create bank directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write anomaly bank: %w", err)
	}
	if err := os.Rename(tmp, d.cfg.BankPath); err != nil {
		return fmt.Errorf("failed to replace anomaly bank: %w", err)
	}

	d.log.Info("anomaly bank saved",
		zap.String("path", d.cfg.BankPath),
		zap.Int("samples", len(d.samples)))
	return nil
}

// zDistance — среднее покомпонентных z-отклонений между двумя векторами.
func (b *bank) zDistance(a, c []float64) float64 {
	var total float64
	for i := range a {
		total += math.Abs(a[i]-c[i]) / b.std[i]
	}
	return total / float64(len(a))
}

// buildBank считает статистики нормализации по накопленным образцам.
func buildBank(samples [][]float64) (*bank, error) {
	dim := len(samples[0])
	for _, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("inconsistent feature dimensions: %d vs %d", len(s), dim)
		}
	}

	mean := make([]float64, dim)
	for _, s := range samples {
		for i, v := range s {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(samples))
	}

	std := make([]float64, dim)
	for _, s := range samples {
		for i, v := range s {
			delta := v - mean[i]
			std[i] += delta * delta
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i] / float64(len(samples)))
		// Вырожденная компонента не должна давать деление на ноль.
		if std[i] < 1e-6 {
			std[i] = 1e-6
		}
	}

	return &bank{vectors: samples, std: std}, nil
}

var _ port.AnomalyTrainer = (*Detector)(nil)
