// Package normalize collapses the detection backend's four response shapes
// into the canonical analysis record.
package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prabujayant/LLM-safety-gateway/internal/detect"
	"github.com/prabujayant/LLM-safety-gateway/internal/domain"
)

// Image-path risk thresholds. When the backend supplies a combined risk
// score, the record's action is derived from these instead of the nested
// scores block: the image path scores risk on a continuous combined metric,
// independent of the text-oriented regex/entropy/anomaly triad.
const (
	riskBlockThreshold    = 70
	riskSanitizeThreshold = 30
)

// ActionForCombinedRisk is the image-path action override rule.
func ActionForCombinedRisk(score float64) domain.Action {
	switch {
	case score > riskBlockThreshold:
		return domain.ActionBlock
	case score > riskSanitizeThreshold:
		return domain.ActionSanitize
	default:
		return domain.ActionPass
	}
}

// Option configures the normalizer.
type Option func(*Normalizer)

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// WithIDGenerator sets the record identifier source.
func WithIDGenerator(newID func() string) Option {
	return func(n *Normalizer) {
		n.newID = newID
	}
}

// Normalizer maps downstream response bodies into canonical records. Apart
// from id and timestamp assignment it is pure with respect to its inputs.
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// New creates a normalizer using UUID record identifiers and the wall clock.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Meta carries submission-side context the backend response cannot supply.
type Meta struct {
	// Prompt is the originally submitted text, used as the fallback raw
	// content on the text path.
	Prompt string

	// Filename is the uploaded file's name, kept in modality metadata.
	Filename string

	// ClientMs is the gateway-measured latency around the downstream call.
	ClientMs int64
}

// Normalize maps a successful downstream response body into a canonical
// record. A malformed body surfaces as a decode error and no record.
func (n *Normalizer) Normalize(source domain.InputSource, body []byte, meta Meta) (*domain.CanonicalRecord, error) {
	switch source {
	case domain.InputText:
		return n.normalizeText(body, meta)
	case domain.InputImage:
		return n.normalizeImage(body, meta)
	case domain.InputDocument:
		return n.normalizeDocument(body, meta)
	case domain.InputVoice:
		return n.normalizeVoice(body, meta)
	default:
		return nil, domain.ErrValidation(fmt.Sprintf("unsupported input source %q", source))
	}
}

func (n *Normalizer) normalizeText(body []byte, meta Meta) (*domain.CanonicalRecord, error) {
	var resp detect.AnalyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeErr(domain.InputText, err)
	}

	raw := resp.RawPrompt
	if raw == "" {
		raw = meta.Prompt
	}

	rec := n.newRecord(domain.InputText, meta)
	rec.RawContent = raw
	rec.SanitizedContent = orDefault(resp.SanitizedPrompt, raw)
	rec.WrappedContent = resp.WrappedPrompt
	rec.Scores = scoresFromBlock(resp.Scores)
	rec.TemplateID = resp.PPATemplateID
	rec.ProcessingMs = resp.ProcessingMs

	return n.seal(rec), nil
}

func (n *Normalizer) normalizeImage(body []byte, meta Meta) (*domain.CanonicalRecord, error) {
	var resp detect.ImageAnalyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeErr(domain.InputImage, err)
	}

	ta := resp.ThreatAnalysis
	if ta == nil {
		ta = &detect.ThreatAnalysis{}
	}

	rec := n.newRecord(domain.InputImage, meta)
	rec.RawContent = resp.ExtractedText
	rec.SanitizedContent = orDefault(ta.Sanitized, resp.ExtractedText)
	rec.WrappedContent = ta.Wrapped
	rec.Scores = scoresFromBlock(ta.Scores)
	rec.TemplateID = ta.TemplateID
	if ta.Scores != nil {
		rec.ProcessingMs = ta.Scores.ProcessingMs
	}

	// Action override: a present combined risk score outranks the nested
	// scores block on the image path.
	if risk, ok := resp.CombinedRiskScore(); ok {
		rec.Scores.Action = ActionForCombinedRisk(risk)
		rec.CombinedRiskScore = &risk
	}

	rec.Metadata = map[string]any{
		"image_analysis": resp.ImageAnalysis,
		"ocr_confidence": resp.OCRConfidence,
	}
	if meta.Filename != "" {
		rec.Metadata["filename"] = meta.Filename
	}

	return n.seal(rec), nil
}

func (n *Normalizer) normalizeDocument(body []byte, meta Meta) (*domain.CanonicalRecord, error) {
	var resp detect.DocumentAnalyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeErr(domain.InputDocument, err)
	}

	ta := resp.ThreatAnalysis
	if ta == nil {
		// The backend omits the threat block for unreadable documents; an
		// all-zero scores record with the default action stands in.
		ta = &detect.ThreatAnalysis{}
	}

	rec := n.newRecord(domain.InputDocument, meta)
	rec.RawContent = resp.ExtractedText
	rec.SanitizedContent = orDefault(ta.Sanitized, resp.ExtractedText)
	rec.WrappedContent = ta.Wrapped
	rec.Scores = scoresFromBlock(ta.Scores)
	rec.TemplateID = ta.TemplateID
	rec.ProcessingMs = ta.ProcessingMs

	rec.Metadata = map[string]any{
		"success":           resp.Success,
		"document_analysis": resp.DocumentAnalysis,
		"document_threats":  resp.DocumentThreatIndicators,
	}
	if meta.Filename != "" {
		rec.Metadata["filename"] = meta.Filename
	}

	return n.seal(rec), nil
}

func (n *Normalizer) normalizeVoice(body []byte, meta Meta) (*domain.CanonicalRecord, error) {
	var resp detect.TranscribeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeErr(domain.InputVoice, err)
	}

	ta := resp.Analysis
	if ta == nil {
		ta = &detect.ThreatAnalysis{}
	}

	rec := n.newRecord(domain.InputVoice, meta)
	rec.RawContent = resp.Transcript
	rec.SanitizedContent = orDefault(ta.Sanitized, resp.Transcript)
	rec.WrappedContent = ta.Wrapped
	rec.Scores = scoresFromBlock(ta.Scores)
	rec.TemplateID = ta.TemplateID
	rec.ProcessingMs = ta.ProcessingMs

	rec.Metadata = map[string]any{
		"confidence": resp.Confidence,
	}

	return n.seal(rec), nil
}

// newRecord assigns the record's identity exactly once.
func (n *Normalizer) newRecord(source domain.InputSource, meta Meta) *domain.CanonicalRecord {
	return &domain.CanonicalRecord{
		ID:          n.newID(),
		Timestamp:   n.now().UTC(),
		InputSource: source,
		ClientMs:    meta.ClientMs,
	}
}

// seal enforces the record invariants: wrapped content and template id are
// present only when the record is not blocked.
func (n *Normalizer) seal(rec *domain.CanonicalRecord) *domain.CanonicalRecord {
	if rec.Blocked() {
		rec.WrappedContent = ""
		rec.TemplateID = ""
	}
	return rec
}

func scoresFromBlock(b *detect.ScoreBlock) domain.Scores {
	if b == nil {
		return domain.Scores{Action: domain.ActionPass}
	}
	return domain.Scores{
		RegexScore:   b.RegexScore,
		EntropyScore: b.EntropyScore,
		AnomalyScore: b.AnomalyScore,
		KeywordScore: b.KeywordScore,
		TotalScore:   b.TotalScore,
		Action:       domain.ParseAction(b.Action),
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func decodeErr(source domain.InputSource, err error) *domain.GatewayError {
	return domain.ErrDecode(fmt.Sprintf("malformed %s analysis response", source)).
		WithDetails(err.Error())
}
