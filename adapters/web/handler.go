package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	errorslib "github.com/goliatone/go-errors"

	"consultation-report-service/report"
)

// RegisterRoutes attaches the HTTP surface to a fiber application.
func (a *App) RegisterRoutes(app *fiber.App) {
	app.Get("/", a.ShowForm)
	app.Post("/", a.SubmitForm)
	app.Get("/uploads/*", a.ServeUpload)
	app.Get("/templates/*", a.ServeTemplate)
	app.Get("/reports", a.ListReports)
	app.Get("/reports/export", a.ExportReports)
}

// ShowForm renders the empty consultation form.
func (a *App) ShowForm(c *fiber.Ctx) error {
	return a.renderForm(c, nil, nil)
}

// SubmitForm validates a submission and returns either the re-rendered
// form with field errors or the generated PDF as an attachment.
func (a *App) SubmitForm(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		ferrs := report.FieldErrors{}
		ferrs.Add(report.FieldClinicLogo, "This field is required.")
		return a.renderForm(c, nil, ferrs)
	}

	values := url.Values(form.Value)
	var logo *multipart.FileHeader
	if headers := form.File[report.FieldClinicLogo]; len(headers) > 0 {
		logo = headers[0]
	}

	sub, ferrs := report.ParseSubmission(values, logo)
	if len(ferrs) > 0 {
		return a.renderForm(c, flattenValues(values), ferrs)
	}

	file, err := logo.Open()
	if err != nil {
		a.Logger.Errorf("logo upload unreadable: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("report generation failed")
	}
	defer func() {
		_ = file.Close()
	}()

	generated, err := a.Service.Generate(c.UserContext(), report.GenerateInput{
		Submission:   sub,
		Logo:         file,
		LogoFilename: logo.Filename,
		BaseURL:      a.baseURL(c),
		RequestAddr:  c.IP(),
	})
	if err != nil {
		a.Logger.Errorf("report generation failed: %v", err)
		if statusForError(err) == fiber.StatusBadRequest {
			ferrs := report.FieldErrors{}
			ferrs.Add(report.FieldClinicLogo, "Images only!")
			return a.renderForm(c, flattenValues(values), ferrs)
		}
		return c.Status(fiber.StatusInternalServerError).SendString("report generation failed")
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", generated.Filename))
	return c.Send(generated.PDF)
}

// ServeUpload returns a previously stored file from the upload directory.
func (a *App) ServeUpload(c *fiber.Ctx) error {
	return a.serveArtifact(c, a.Uploads, c.Params("*"))
}

// ServeTemplate returns a static template asset by path.
func (a *App) ServeTemplate(c *fiber.Ctx) error {
	return a.serveArtifact(c, a.Templates, c.Params("*"))
}

// ListReports handles GET /reports.
func (a *App) ListReports(c *fiber.Ctx) error {
	filter, err := historyFilterFromQuery(c)
	if err != nil {
		return a.writeError(c, err)
	}

	records, err := a.Tracker.List(c.UserContext(), filter)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(fiber.Map{"reports": records})
}

// ExportReports handles GET /reports/export, returning the history as an
// XLSX download.
func (a *App) ExportReports(c *fiber.Ctx) error {
	filter, err := historyFilterFromQuery(c)
	if err != nil {
		return a.writeError(c, err)
	}

	records, err := a.Tracker.List(c.UserContext(), filter)
	if err != nil {
		return a.writeError(c, err)
	}

	var buf bytes.Buffer
	if err := report.WriteHistoryXLSX(records, &buf); err != nil {
		return a.writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=consultation-reports.xlsx")
	return c.Send(buf.Bytes())
}

func (a *App) serveArtifact(c *fiber.Ctx, store report.ArtifactStore, key string) error {
	rc, meta, err := store.Open(c.UserContext(), key)
	if err != nil {
		// Traversal attempts and misses look the same to the caller.
		return c.SendStatus(fiber.StatusNotFound)
	}
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		a.Logger.Errorf("failed to read artifact %q: %v", key, err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if meta.ContentType != "" {
		c.Set(fiber.HeaderContentType, meta.ContentType)
	}
	return c.Send(data)
}

func (a *App) renderForm(c *fiber.Ctx, values map[string]string, ferrs report.FieldErrors) error {
	html, err := a.Renderer.RenderForm(values, ferrs)
	if err != nil {
		a.Logger.Errorf("form rendering failed: %v", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(html)
}

func (a *App) baseURL(c *fiber.Ctx) string {
	if a.Config.Server.BaseURL != "" {
		return a.Config.Server.BaseURL
	}
	return c.BaseURL()
}

func (a *App) writeError(c *fiber.Ctx, err error) error {
	ge := report.AsGoError(err)
	return c.Status(statusForError(err)).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    ge.TextCode,
			"message": ge.Error(),
		},
	})
}

func statusForError(err error) int {
	var ge *errorslib.Error
	if errors.As(err, &ge) {
		switch ge.TextCode {
		case "validation":
			return fiber.StatusBadRequest
		case "not_found":
			return fiber.StatusNotFound
		case "timeout":
			return fiber.StatusGatewayTimeout
		}
		return fiber.StatusInternalServerError
	}

	switch report.KindFromError(err) {
	case report.KindValidation:
		return fiber.StatusBadRequest
	case report.KindNotFound:
		return fiber.StatusNotFound
	case report.KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func historyFilterFromQuery(c *fiber.Ctx) (report.HistoryFilter, error) {
	filter := report.HistoryFilter{
		PatientLastName: c.Query("patient_last"),
	}
	if since := c.Query("since"); since != "" {
		parsed, err := time.Parse(report.DateFormat, since)
		if err != nil {
			return report.HistoryFilter{}, report.NewError(report.KindValidation, "invalid since date, use YYYY-MM-DD", err)
		}
		filter.Since = parsed
	}
	if until := c.Query("until"); until != "" {
		parsed, err := time.Parse(report.DateFormat, until)
		if err != nil {
			return report.HistoryFilter{}, report.NewError(report.KindValidation, "invalid until date, use YYYY-MM-DD", err)
		}
		filter.Until = parsed
	}
	return filter, nil
}

func flattenValues(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for key, list := range values {
		if len(list) > 0 {
			out[key] = list[0]
		}
	}
	return out
}
