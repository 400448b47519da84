package detect

// Wire types for the detection backend's four analysis endpoints plus the
// history listing. Field names follow the backend's JSON exactly.

// ScoreBlock is the detection score object nested in every modality
// response.
type ScoreBlock struct {
	RegexScore   float64 `json:"regex_score"`
	EntropyScore float64 `json:"entropy_score"`
	AnomalyScore float64 `json:"anomaly_score"`
	KeywordScore float64 `json:"keyword_score"`
	TotalScore   float64 `json:"total_score"`
	Action       string  `json:"action"`
	ProcessingMs float64 `json:"processing_ms"`
}

// ThreatAnalysis is the shared sub-object the image, document and voice
// paths nest their detection results under.
type ThreatAnalysis struct {
	Scores       *ScoreBlock `json:"scores"`
	Sanitized    string      `json:"sanitized"`
	Wrapped      string      `json:"wrapped"`
	TemplateID   string      `json:"template_id"`
	ProcessingMs float64     `json:"processing_ms"`
}

// AnalyzeResponse is the POST /analyze response shape.
type AnalyzeResponse struct {
	RawPrompt       string      `json:"raw_prompt"`
	SanitizedPrompt string      `json:"sanitized_prompt"`
	WrappedPrompt   string      `json:"wrapped_prompt"`
	Scores          *ScoreBlock `json:"scores"`
	PPATemplateID   string      `json:"ppa_template_id"`
	ProcessingMs    float64     `json:"processing_ms"`
}

// ImageAnalyzeResponse is the POST /analyze-image response shape.
type ImageAnalyzeResponse struct {
	Success        bool            `json:"success"`
	ExtractedText  string          `json:"extracted_text"`
	ThreatAnalysis *ThreatAnalysis `json:"threat_analysis"`
	ImageAnalysis  map[string]any  `json:"image_analysis"`
	OCRConfidence  float64         `json:"ocr_confidence"`
}

// CombinedRiskScore extracts the continuous risk metric from the image
// analysis sub-object, reporting whether the backend supplied one.
func (r *ImageAnalyzeResponse) CombinedRiskScore() (float64, bool) {
	v, ok := r.ImageAnalysis["combined_risk_score"]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// DocumentAnalyzeResponse is the POST /analyze-document response shape.
type DocumentAnalyzeResponse struct {
	Success                  bool            `json:"success"`
	DocumentAnalysis         map[string]any  `json:"document_analysis"`
	ExtractedText            string          `json:"extracted_text"`
	ThreatAnalysis           *ThreatAnalysis `json:"threat_analysis"`
	DocumentThreatIndicators any             `json:"document_threat_indicators"`
}

// TranscribeResponse is the POST /transcribe response shape.
type TranscribeResponse struct {
	Success    bool            `json:"success"`
	Transcript string          `json:"transcript"`
	Confidence float64         `json:"confidence"`
	Analysis   *ThreatAnalysis `json:"analysis"`
}

// AttackLogItem is one record in the backend's history listing.
type AttackLogItem struct {
	ID              int64   `json:"id"`
	Timestamp       string  `json:"timestamp"`
	Action          string  `json:"action"`
	TotalScore      float64 `json:"total_score"`
	ProcessingMs    float64 `json:"processing_ms"`
	RegexScore      float64 `json:"regex_score"`
	EntropyScore    float64 `json:"entropy_score"`
	AnomalyScore    float64 `json:"anomaly_score"`
	PPATemplateID   *string `json:"ppa_template_id"`
	RawPrompt       string  `json:"raw_prompt"`
	SanitizedPrompt string  `json:"sanitized_prompt"`
	WrappedPrompt   string  `json:"wrapped_prompt"`
}

// HistoryResponse is the GET /history response shape.
type HistoryResponse struct {
	Items []AttackLogItem `json:"items"`
}
