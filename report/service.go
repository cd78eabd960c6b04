package report

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateInput carries one validated submission through the pipeline.
type GenerateInput struct {
	Submission   ConsultationSubmission
	Logo         io.Reader
	LogoFilename string
	// BaseURL is the externally reachable root of this server; the stored
	// logo must be fetchable from it by the PDF engine.
	BaseURL     string
	RequestAddr string
}

// Service turns validated submissions into stored PDF reports.
type Service struct {
	Store    ArtifactStore
	Engine   PDFEngine
	Renderer *Renderer
	Tracker  HistoryTracker
	Logger   Logger
	PDF      PDFOptions

	Now   func() time.Time
	NewID func() string
}

// Generate stores the logo, renders the report HTML, converts it to PDF,
// persists the artifact under its derived filename and records a history
// row. The returned report carries the PDF bytes for immediate download.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (GeneratedReport, error) {
	if s == nil || s.Store == nil || s.Engine == nil || s.Renderer == nil {
		return GeneratedReport{}, AsGoError(NewError(KindInternal, "report service is not configured", nil))
	}
	if in.Logo == nil {
		return GeneratedReport{}, AsGoError(NewError(KindValidation, "clinic logo upload is required", nil))
	}

	logoKey := SanitizeFilename(in.LogoFilename)
	if logoKey == "" || !LogoExtensionAllowed(logoKey) {
		return GeneratedReport{}, AsGoError(NewError(KindValidation, "clinic logo filename is not allowed", nil))
	}

	now := s.now()

	logoRef, err := s.Store.Put(ctx, logoKey, in.Logo, ArtifactMeta{
		Filename:    logoKey,
		ContentType: mime.TypeByExtension(filepath.Ext(logoKey)),
		CreatedAt:   now,
	})
	if err != nil {
		return GeneratedReport{}, AsGoError(NewError(KindInternal, "failed to store clinic logo", err))
	}

	logoURL := strings.TrimRight(in.BaseURL, "/") + "/uploads/" + url.PathEscape(logoRef.Key)

	htmlDoc, err := s.Renderer.RenderReport(ReportContext{
		Submission:  in.Submission,
		LogoURL:     logoURL,
		Timestamp:   now.Format(TimestampFormat),
		RequestAddr: in.RequestAddr,
	})
	if err != nil {
		return GeneratedReport{}, AsGoError(err)
	}

	opts := s.PDF
	if opts.BaseURL == "" {
		opts.BaseURL = strings.TrimRight(in.BaseURL, "/") + "/"
	}
	pdf, err := s.Engine.Render(ctx, PDFRequest{HTML: htmlDoc, Options: opts})
	if err != nil {
		return GeneratedReport{}, AsGoError(NewError(KindInternal, "report generation failed", err))
	}

	filename := ReportFilename(in.Submission)
	ref, err := s.Store.Put(ctx, filename, bytes.NewReader(pdf), ArtifactMeta{
		Filename:    filename,
		ContentType: "application/pdf",
		CreatedAt:   now,
	})
	if err != nil {
		return GeneratedReport{}, AsGoError(NewError(KindInternal, "failed to store report", err))
	}

	record := ReportRecord{
		ID:               s.nextID(),
		Filename:         filename,
		ClinicName:       in.Submission.ClinicName,
		PhysicianName:    in.Submission.PhysicianName,
		PatientFirstName: in.Submission.PatientFirstName,
		PatientLastName:  in.Submission.PatientLastName,
		PatientDOB:       in.Submission.PatientDOB,
		RequestAddr:      in.RequestAddr,
		Size:             ref.Meta.Size,
		CreatedAt:        now,
	}
	if s.Tracker != nil {
		if _, err := s.Tracker.Save(ctx, record); err != nil {
			// The artifact exists and is downloadable; a history gap is
			// recoverable, a failed request is not.
			s.logErrorf("report history save failed: %v", err)
		}
	}

	s.logInfof("generated report %s (%d bytes) for %s", filename, ref.Meta.Size, in.RequestAddr)

	return GeneratedReport{
		RecordID:    record.ID,
		Filename:    filename,
		PDF:         pdf,
		LogoKey:     logoRef.Key,
		Size:        ref.Meta.Size,
		Timestamp:   now,
		RequestAddr: in.RequestAddr,
	}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) nextID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) logInfof(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Infof(format, args...)
	}
}

func (s *Service) logErrorf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Errorf(format, args...)
	}
}
