package report

import (
	"github.com/flosch/pongo2/v6"
)

const (
	formTemplate   = "form.html"
	reportTemplate = "report.html"
)

// Renderer renders the consultation form and the report document from
// pongo2 templates on disk.
type Renderer struct {
	set *pongo2.TemplateSet
}

// NewRenderer creates a renderer rooted at the template directory.
func NewRenderer(dir string) (*Renderer, error) {
	loader, err := pongo2.NewLocalFileSystemLoader(dir)
	if err != nil {
		return nil, NewError(KindInternal, "template directory unavailable", err)
	}
	return &Renderer{set: pongo2.NewSet("reports", loader)}, nil
}

// ReportContext carries everything the report template needs.
type ReportContext struct {
	Submission  ConsultationSubmission
	LogoURL     string
	Timestamp   string
	RequestAddr string
}

// RenderReport produces the self-contained HTML report document. Rich text
// fields pass through verbatim; everything else is escaped by the template
// engine.
func (r *Renderer) RenderReport(ctx ReportContext) ([]byte, error) {
	tpl, err := r.set.FromCache(reportTemplate)
	if err != nil {
		return nil, NewError(KindInternal, "report template unavailable", err)
	}

	sub := ctx.Submission
	out, err := tpl.ExecuteBytes(pongo2.Context{
		"clinic_name":        sub.ClinicName,
		"clinic_logo":        ctx.LogoURL,
		"physician_name":     sub.PhysicianName,
		"physician_contact":  sub.PhysicianContact,
		"patient_first_name": sub.PatientFirstName,
		"patient_last_name":  sub.PatientLastName,
		"patient_dob":        sub.PatientDOB.Format(DateFormat),
		"patient_contact":    sub.PatientContact,
		"chief_complaint":    sub.ChiefComplaint,
		"consultation_note":  sub.ConsultationNote,
		"timestamp":          ctx.Timestamp,
		"ip":                 ctx.RequestAddr,
	})
	if err != nil {
		return nil, NewError(KindInternal, "report template failed", err)
	}
	return out, nil
}

// RenderForm produces the submission form, optionally re-displaying the
// submitted values alongside their field errors.
func (r *Renderer) RenderForm(values map[string]string, errs FieldErrors) ([]byte, error) {
	tpl, err := r.set.FromCache(formTemplate)
	if err != nil {
		return nil, NewError(KindInternal, "form template unavailable", err)
	}

	if values == nil {
		values = map[string]string{}
	}
	if errs == nil {
		errs = FieldErrors{}
	}

	out, err := tpl.ExecuteBytes(pongo2.Context{
		"values": values,
		"errors": errs,
	})
	if err != nil {
		return nil, NewError(KindInternal, "form template failed", err)
	}
	return out, nil
}
