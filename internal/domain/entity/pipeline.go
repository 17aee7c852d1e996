package entity

// PipelineResult — итог двухэтапного конвейера: визуальная инспекция
// плюс (опционально) сопоставление с базой знаний.
type PipelineResult struct {
	Inspection       *InspectionResult `json:"inspection"`
	Match            *MatchResult      `json:"match,omitempty"`
	FallbackToCLIP   bool              `json:"fallback_to_clip"`
	ProcessingTimeMS float64           `json:"processing_time_ms"`
	Warning          string            `json:"warning,omitempty"`
}
