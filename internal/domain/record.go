// Package domain provides the canonical analysis record and error types
// shared by every modality path in the gateway.
package domain

import "time"

// InputSource identifies the modality a submission arrived through.
type InputSource string

const (
	InputText     InputSource = "text"
	InputImage    InputSource = "image"
	InputDocument InputSource = "document"
	InputVoice    InputSource = "voice"
)

// Valid reports whether the input source is one of the accepted modalities.
func (s InputSource) Valid() bool {
	switch s {
	case InputText, InputImage, InputDocument, InputVoice:
		return true
	}
	return false
}

// Action is the gateway's trust decision for a given input.
type Action string

const (
	ActionPass     Action = "pass"
	ActionSanitize Action = "sanitize"
	ActionBlock    Action = "block"
)

// ParseAction maps a backend-reported action string to an Action.
// Unknown or missing values default to pass.
func ParseAction(s string) Action {
	switch Action(s) {
	case ActionSanitize:
		return ActionSanitize
	case ActionBlock:
		return ActionBlock
	default:
		return ActionPass
	}
}

// Scores is the structured detection output attached to every record.
type Scores struct {
	RegexScore   float64 `json:"regex_score"`
	EntropyScore float64 `json:"entropy_score"`
	AnomalyScore float64 `json:"anomaly_score"`
	KeywordScore float64 `json:"keyword_score"`
	TotalScore   float64 `json:"total_score"`
	Action       Action  `json:"action"`
}

// CanonicalRecord is the unified analysis result produced from any input
// modality. It is assigned its id and timestamp exactly once, at
// normalization time, and is read-only afterwards.
type CanonicalRecord struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	InputSource InputSource `json:"input_source"`

	// RawContent is the original textual content: the verbatim prompt,
	// OCR-extracted text, or transcript.
	RawContent string `json:"raw_prompt"`

	// SanitizedContent equals RawContent unless the backend explicitly
	// sanitized it.
	SanitizedContent string `json:"sanitized_prompt"`

	// WrappedContent is the backend-assembled wrapper text. It is present
	// only when the record is not blocked.
	WrappedContent string `json:"wrapped_prompt,omitempty"`

	Scores Scores `json:"scores"`

	// CombinedRiskScore is set only for image-sourced records whose backend
	// reported a combined risk metric. When present it determined the
	// record's action (see normalize.ActionForCombinedRisk).
	CombinedRiskScore *float64 `json:"combined_risk_score,omitempty"`

	TemplateID string `json:"ppa_template_id,omitempty"`

	// ProcessingMs is backend-reported latency; ClientMs is measured by the
	// gateway around the downstream call. They are independent and never
	// reconciled.
	ProcessingMs float64 `json:"processing_ms"`
	ClientMs     int64   `json:"client_ms"`

	// Metadata is an opaque modality-specific sub-object: image analysis
	// details, document threat indicators, or transcription confidence.
	Metadata map[string]any `json:"modality_metadata,omitempty"`
}

// Blocked reports whether the record's action is block.
func (r *CanonicalRecord) Blocked() bool {
	return r.Scores.Action == ActionBlock
}
