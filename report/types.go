package report

import (
	"context"
	"errors"
	"io"
	"time"
)

// DateFormat is the wire format for patient dates of birth.
const DateFormat = "2006-01-02"

// TimestampFormat is the format stamped onto generated reports.
const TimestampFormat = "2006-01-02 15:04:05"

// ConsultationSubmission is a fully validated form submission. One is
// built per request and never mutated afterwards.
type ConsultationSubmission struct {
	ClinicName       string    `validate:"required"`
	ClinicLogo       string    `validate:"required"`
	PhysicianName    string    `validate:"required,alpha_space"`
	PhysicianContact string    `validate:"required,digits_only"`
	PatientFirstName string    `validate:"required,alpha_space"`
	PatientLastName  string    `validate:"required,alpha_space"`
	PatientDOB       time.Time `validate:"required,not_future"`
	PatientContact   string    `validate:"required,digits_only"`
	ChiefComplaint   string    `validate:"required"`
	ConsultationNote string    `validate:"required"`
}

// GeneratedReport is the outcome of a successful generation run.
type GeneratedReport struct {
	RecordID    string
	Filename    string
	PDF         []byte
	LogoKey     string
	Size        int64
	Timestamp   time.Time
	RequestAddr string
}

// ReportRecord is one row of persisted report history.
type ReportRecord struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	ClinicName       string    `json:"clinic_name"`
	PhysicianName    string    `json:"physician_name"`
	PatientFirstName string    `json:"patient_first_name"`
	PatientLastName  string    `json:"patient_last_name"`
	PatientDOB       time.Time `json:"patient_dob"`
	RequestAddr      string    `json:"request_addr"`
	Size             int64     `json:"size"`
	CreatedAt        time.Time `json:"created_at"`
}

// HistoryFilter narrows history listings.
type HistoryFilter struct {
	PatientLastName string
	Since           time.Time
	Until           time.Time
}

// HistoryTracker persists generated report records.
type HistoryTracker interface {
	Save(ctx context.Context, record ReportRecord) (string, error)
	Get(ctx context.Context, id string) (ReportRecord, error)
	List(ctx context.Context, filter HistoryFilter) ([]ReportRecord, error)
}

// ArtifactMeta describes a stored artifact.
type ArtifactMeta struct {
	Filename    string    `json:"filename,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// ArtifactRef points at a stored artifact.
type ArtifactRef struct {
	Key  string       `json:"key"`
	Meta ArtifactMeta `json:"meta"`
}

// ArtifactStore persists uploaded logos and generated PDFs.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
	Delete(ctx context.Context, key string) error
}

// PDFExternalAssetsPolicy controls network fetches during PDF rendering.
type PDFExternalAssetsPolicy string

const (
	PDFExternalAssetsAllow PDFExternalAssetsPolicy = "allow"
	PDFExternalAssetsBlock PDFExternalAssetsPolicy = "block"
)

// PDFOptions tunes the HTML-to-PDF conversion.
type PDFOptions struct {
	PageSize             string
	Landscape            *bool
	PrintBackground      *bool
	Scale                float64
	MarginTop            string
	MarginBottom         string
	MarginLeft           string
	MarginRight          string
	PreferCSSPageSize    *bool
	BaseURL              string
	ExternalAssetsPolicy PDFExternalAssetsPolicy
}

// PDFRequest contains HTML input and render options for PDF engines.
type PDFRequest struct {
	HTML    []byte
	Options PDFOptions
}

// PDFEngine renders HTML content into PDF bytes.
type PDFEngine interface {
	Render(ctx context.Context, req PDFRequest) ([]byte, error)
}

// PDFEngineFunc adapts a function to a PDFEngine.
type PDFEngineFunc func(ctx context.Context, req PDFRequest) ([]byte, error)

func (f PDFEngineFunc) Render(ctx context.Context, req PDFRequest) ([]byte, error) {
	if f == nil {
		return nil, errors.New("pdf engine func is nil")
	}
	return f(ctx, req)
}

// Logger is the minimal logging contract used by the service.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}
