package entity

// DefectTypeOK — специальный тип профиля для эталонов "годной" поверхности.
// Совпадение с таким профилем трактуется как исход OK, а не DEFECT.
const DefectTypeOK = "OK"

// Исход сопоставления с базой знаний.
const (
	OutcomeDefect  = "DEFECT"
	OutcomeOK      = "OK"
	OutcomeUnknown = "UNKNOWN"
)

// DefectProfile — эталонная запись базы знаний о дефектах.
// Каталог владеет профилями, матчер их только читает.
type DefectProfile struct {
	ID              string    `json:"id"`
	DefectType      string    `json:"defect_type"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Severity        string    `json:"severity"`
	Keywords        []string  `json:"keywords,omitempty"`
	ReferenceImages []string  `json:"reference_images,omitempty"`
	ImageEmbedding  []float32 `json:"image_embedding,omitempty"`
	TextEmbedding   []float32 `json:"text_embedding,omitempty"`
}

// TopKMatch — один кандидат из ранжированного списка совпадений.
type TopKMatch struct {
	Profile    DefectProfile `json:"profile"`
	Confidence float64       `json:"confidence"`
	Rank       int           `json:"rank"`
}

// MatchResult — итог сопоставления запроса с каталогом профилей.
// Profile равен nil тогда и только тогда, когда Outcome == UNKNOWN.
// TopK заполняется всегда, включая UNKNOWN, для отладки и аудита.
type MatchResult struct {
	Outcome    string         `json:"outcome"`
	Profile    *DefectProfile `json:"profile,omitempty"`
	Confidence float64        `json:"confidence"`
	Warning    string         `json:"warning,omitempty"`
	TopK       []TopKMatch    `json:"top_k"`
}
