package entity

import "time"

// Итоговый вердикт визуальной инспекции.
const (
	ResultOK = "OK"
	ResultNG = "NG"

	// ResultNotAvailable — заглушка, когда визуальный этап выключен.
	ResultNotAvailable = "N/A"
)

// ModelVersion — версия контракта результатов. Поля только добавляются;
// переименование или удаление требует смены версии.
const ModelVersion = "2.0.0"

// DetectorError — сентинел в detectors_used при критическом сбое движка.
const DetectorError = "ERROR"

// InspectionResult хранит итог анализа одного изображения.
// Создаётся один раз на вызов и не изменяется после возврата.
type InspectionResult struct {
	Result           string         `json:"result"`
	AnomalyScore     float64        `json:"anomaly_score"`
	DefectRegions    []DefectRegion `json:"defect_regions"`
	Timestamp        time.Time      `json:"timestamp"`
	ImageID          string         `json:"image_id,omitempty"`
	ModelVersion     string         `json:"model_version"`
	ProcessingTimeMS float64        `json:"processing_time_ms"`
	DetectorsUsed    []string       `json:"detectors_used"`
	AnomalyThreshold float64        `json:"anomaly_threshold"`
}

// InspectionMeta — метаданные аудита, общие для всех фабрик результатов.
type InspectionMeta struct {
	ImageID          string
	ProcessingTimeMS float64
	DetectorsUsed    []string
	AnomalyThreshold float64
}

func newResult(result string, score float64, regions []DefectRegion, meta InspectionMeta) *InspectionResult {
	if regions == nil {
		regions = []DefectRegion{}
	}
	if meta.DetectorsUsed == nil {
		meta.DetectorsUsed = []string{}
	}
	return &InspectionResult{
		Result:           result,
		AnomalyScore:     score,
		DefectRegions:    regions,
		Timestamp:        time.Now().UTC(),
		ImageID:          meta.ImageID,
		ModelVersion:     ModelVersion,
		ProcessingTimeMS: meta.ProcessingTimeMS,
		DetectorsUsed:    meta.DetectorsUsed,
		AnomalyThreshold: meta.AnomalyThreshold,
	}
}

// NewOKResult создаёт результат без дефектов.
func NewOKResult(anomalyScore float64, meta InspectionMeta) *InspectionResult {
	return newResult(ResultOK, anomalyScore, nil, meta)
}

// NewNGResult создаёт результат с найденными дефектами.
func NewNGResult(anomalyScore float64, regions []DefectRegion, meta InspectionMeta) *InspectionResult {
	return newResult(ResultNG, anomalyScore, regions, meta)
}

// NewErrorResult создаёт консервативный NG-результат при критическом сбое:
// лучше ложная тревога, чем пропущенный брак.
func NewErrorResult(meta InspectionMeta) *InspectionResult {
	meta.DetectorsUsed = []string{DetectorError}
	return newResult(ResultNG, 1.0, nil, meta)
}

// NewSkippedResult создаёт заглушку, когда визуальный этап отключён.
func NewSkippedResult(imageID string) *InspectionResult {
	return newResult(ResultNotAvailable, 0.0, nil, InspectionMeta{ImageID: imageID})
}

// IsError сообщает, что результат получен из аварийной ветки движка.
func (r *InspectionResult) IsError() bool {
	return len(r.DetectorsUsed) == 1 && r.DetectorsUsed[0] == DetectorError
}

// DefectCount возвращает количество найденных дефектов.
func (r *InspectionResult) DefectCount() int {
	return len(r.DefectRegions)
}

// HasDefects сообщает о наличии хотя бы одного дефекта.
func (r *InspectionResult) HasDefects() bool {
	return len(r.DefectRegions) > 0
}

// DefectsByType группирует количество дефектов по типу.
func (r *InspectionResult) DefectsByType() map[string]int {
	counts := make(map[string]int, len(r.DefectRegions))
	for _, region := range r.DefectRegions {
		counts[region.DefectType]++
	}
	return counts
}
