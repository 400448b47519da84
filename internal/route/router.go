// Package route maps a client submission to the detection backend endpoint
// that can analyze it, and builds the request payload. It performs no
// network I/O itself.
package route

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/prabujayant/LLM-safety-gateway/internal/domain"
)

// Endpoints on the detection backend, one per modality.
const (
	EndpointAnalyze         = "/analyze"
	EndpointAnalyzeImage    = "/analyze-image"
	EndpointAnalyzeDocument = "/analyze-document"
	EndpointTranscribe      = "/transcribe"
)

// documentExtensions is the client-enforced allow-list for document uploads.
var documentExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
	".rtf":  true,
}

// documentMIMETypes mirrors documentExtensions for submissions whose
// extension is unhelpful but whose declared MIME type is known.
var documentMIMETypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/msword": true,
	"text/plain":         true,
	"application/rtf":    true,
	"text/rtf":           true,
}

// File is an uploaded binary payload with its client-declared identity.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Submission carries exactly one modality's content.
type Submission struct {
	Source domain.InputSource
	Prompt string
	File   *File
}

// Request is a fully built downstream request, ready for a detection client
// to execute.
type Request struct {
	Endpoint    string
	ContentType string
	Body        []byte
}

// Route validates the submission and builds the downstream request for its
// modality. Missing content fails before any payload is constructed;
// disallowed file types fail before any network call is made.
func Route(sub Submission) (*Request, error) {
	switch sub.Source {
	case domain.InputText:
		return routeText(sub)
	case domain.InputImage:
		return routeImage(sub)
	case domain.InputDocument:
		return routeDocument(sub)
	case domain.InputVoice:
		return routeVoice(sub)
	default:
		return nil, domain.ErrValidation(fmt.Sprintf("unsupported input source %q", sub.Source))
	}
}

func routeText(sub Submission) (*Request, error) {
	if strings.TrimSpace(sub.Prompt) == "" {
		return nil, domain.ErrMissingInput("prompt is required")
	}

	body, err := json.Marshal(map[string]string{"prompt": sub.Prompt})
	if err != nil {
		return nil, domain.ErrValidation("prompt is not encodable").WithDetails(err.Error())
	}

	return &Request{
		Endpoint:    EndpointAnalyze,
		ContentType: "application/json",
		Body:        body,
	}, nil
}

func routeImage(sub Submission) (*Request, error) {
	if sub.File == nil || len(sub.File.Data) == 0 {
		return nil, domain.ErrMissingInput("image file is required")
	}
	if !strings.HasPrefix(sub.File.ContentType, "image/") {
		return nil, domain.ErrValidation("invalid image type").
			WithDetails(fmt.Sprintf("declared type %q is not an image MIME type", sub.File.ContentType))
	}
	return buildFileRequest(EndpointAnalyzeImage, sub.File)
}

func routeDocument(sub Submission) (*Request, error) {
	if sub.File == nil || len(sub.File.Data) == 0 {
		return nil, domain.ErrMissingInput("document file is required")
	}

	ext := strings.ToLower(filepath.Ext(sub.File.Name))
	if !documentExtensions[ext] && !documentMIMETypes[sub.File.ContentType] {
		return nil, domain.ErrValidation("invalid document type").
			WithDetails("supported types: PDF, DOCX, DOC, TXT, RTF")
	}
	return buildFileRequest(EndpointAnalyzeDocument, sub.File)
}

func routeVoice(sub Submission) (*Request, error) {
	if sub.File == nil || len(sub.File.Data) == 0 {
		return nil, domain.ErrMissingInput("audio file is required")
	}
	return buildFileRequest(EndpointTranscribe, sub.File)
}

// buildFileRequest assembles a multipart payload with a single "file" part,
// preserving the client-declared content type on the part header.
func buildFileRequest(endpoint string, f *File) (*Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	hdr.Set("Content-Type", contentType)

	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, domain.ErrValidation("failed to build upload payload").WithDetails(err.Error())
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, domain.ErrValidation("failed to build upload payload").WithDetails(err.Error())
	}
	if err := w.Close(); err != nil {
		return nil, domain.ErrValidation("failed to build upload payload").WithDetails(err.Error())
	}

	return &Request{
		Endpoint:    endpoint,
		ContentType: w.FormDataContentType(),
		Body:        buf.Bytes(),
	}, nil
}
