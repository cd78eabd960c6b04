package web

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	storefs "consultation-report-service/adapters/store/fs"
	"consultation-report-service/config"
	"consultation-report-service/report"
)

type testEnv struct {
	app       *fiber.App
	uploadDir string
	tracker   *report.MemoryTracker
}

func newTestEnv(t *testing.T, engine report.PDFEngine) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	renderer, err := report.NewRenderer("../../templates")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	uploadDir := t.TempDir()
	uploads := storefs.NewStore(uploadDir)
	tracker := report.NewMemoryTracker()

	if engine == nil {
		engine = report.PDFEngineFunc(func(ctx context.Context, req report.PDFRequest) ([]byte, error) {
			return []byte("%PDF-1.7 fake"), nil
		})
	}

	app := &App{
		Config:    config.Defaults(),
		Logger:    log,
		Renderer:  renderer,
		Uploads:   uploads,
		Templates: storefs.NewStore("../../templates"),
		Tracker:   tracker,
		Service: &report.Service{
			Store:    uploads,
			Engine:   engine,
			Renderer: renderer,
			Tracker:  tracker,
			Logger:   log,
		},
	}

	srv := fiber.New()
	app.RegisterRoutes(srv)

	return &testEnv{app: srv, uploadDir: uploadDir, tracker: tracker}
}

func validFormFields() map[string]string {
	return map[string]string{
		report.FieldClinicName:       "Evergreen Clinic",
		report.FieldPhysicianName:    "John Smith",
		report.FieldPhysicianContact: "5551234567",
		report.FieldPatientFirstName: "Jane",
		report.FieldPatientLastName:  "Smith",
		report.FieldPatientDOB:       "2020-01-01",
		report.FieldPatientContact:   "5559876543",
		report.FieldChiefComplaint:   "<p>Persistent cough</p>",
		report.FieldConsultationNote: "<p>Prescribed rest</p>",
	}
}

func multipartBody(t *testing.T, fields map[string]string, logoName string, logoData []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatalf("WriteField(%s): %v", key, err)
		}
	}
	if logoName != "" {
		fw, err := w.CreateFormFile(report.FieldClinicLogo, logoName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(logoData); err != nil {
			t.Fatalf("write logo: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func uploadedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestShowForm(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/", nil), -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `<form method="post"`) {
		t.Fatalf("missing form:\n%s", body)
	}
}

func TestSubmitForm_GeneratesPDF(t *testing.T) {
	env := newTestEnv(t, nil)

	buf, contentType := multipartBody(t, validFormFields(), "logo.png", []byte("png-bytes"))
	req := httptest.NewRequest("POST", "/", buf)
	req.Header.Set("Content-Type", contentType)

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type: %q", got)
	}
	want := "attachment; filename=CR_Smith_Jane_2020-01-01.pdf"
	if got := resp.Header.Get("Content-Disposition"); got != want {
		t.Fatalf("unexpected disposition: %q", got)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "%PDF-1.7 fake" {
		t.Fatalf("unexpected body: %q", body)
	}

	names := uploadedFiles(t, env.uploadDir)
	if len(names) != 2 {
		t.Fatalf("expected logo and report on disk, got %v", names)
	}

	records, _ := env.tracker.List(context.Background(), report.HistoryFilter{})
	if len(records) != 1 || records[0].Filename != "CR_Smith_Jane_2020-01-01.pdf" {
		t.Fatalf("unexpected history: %+v", records)
	}
}

func TestSubmitForm_InvalidPhysicianName(t *testing.T) {
	env := newTestEnv(t, nil)

	fields := validFormFields()
	fields[report.FieldPhysicianName] = "John123"
	buf, contentType := multipartBody(t, fields, "logo.png", []byte("png-bytes"))
	req := httptest.NewRequest("POST", "/", buf)
	req.Header.Set("Content-Type", contentType)

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("re-rendered form should be 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); !strings.Contains(got, "text/html") {
		t.Fatalf("unexpected content type: %q", got)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "characters only") {
		t.Fatalf("missing field error:\n%s", body)
	}
	if !strings.Contains(string(body), `value="John123"`) {
		t.Fatalf("submitted value not redisplayed:\n%s", body)
	}

	if names := uploadedFiles(t, env.uploadDir); len(names) != 0 {
		t.Fatalf("nothing should be written on validation failure, got %v", names)
	}
}

func TestSubmitForm_GIFLogoRejectedBeforeWrite(t *testing.T) {
	env := newTestEnv(t, nil)

	buf, contentType := multipartBody(t, validFormFields(), "logo.gif", []byte("gif-bytes"))
	req := httptest.NewRequest("POST", "/", buf)
	req.Header.Set("Content-Type", contentType)

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Images only!") {
		t.Fatalf("missing logo error:\n%s", body)
	}
	if names := uploadedFiles(t, env.uploadDir); len(names) != 0 {
		t.Fatalf("rejected upload must not touch disk, got %v", names)
	}
}

func TestSubmitForm_MissingLogo(t *testing.T) {
	env := newTestEnv(t, nil)

	buf, contentType := multipartBody(t, validFormFields(), "", nil)
	req := httptest.NewRequest("POST", "/", buf)
	req.Header.Set("Content-Type", contentType)

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "This field is required.") {
		t.Fatalf("missing required error:\n%s", body)
	}
}

func TestSubmitForm_EngineFailure(t *testing.T) {
	engine := report.PDFEngineFunc(func(ctx context.Context, req report.PDFRequest) ([]byte, error) {
		return nil, report.NewError(report.KindInternal, "chromium crashed", nil)
	})
	env := newTestEnv(t, engine)

	buf, contentType := multipartBody(t, validFormFields(), "logo.png", []byte("png-bytes"))
	req := httptest.NewRequest("POST", "/", buf)
	req.Header.Set("Content-Type", contentType)

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "report generation failed") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestServeUpload(t *testing.T) {
	env := newTestEnv(t, nil)

	logoPath := filepath.Join(env.uploadDir, "logo.png")
	if err := os.WriteFile(logoPath, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", "/uploads/logo.png", nil), -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "png-bytes" {
		t.Fatalf("unexpected body: %q", body)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("unexpected content type: %q", got)
	}
}

func TestServeUpload_TraversalIs404(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, target := range []string{
		"/uploads/../../etc/passwd",
		"/uploads/..%2f..%2fetc%2fpasswd",
		"/uploads/missing.pdf",
	} {
		resp, err := env.app.Test(httptest.NewRequest("GET", target, nil), -1)
		if err != nil {
			t.Fatalf("Test(%s): %v", target, err)
		}
		if resp.StatusCode != fiber.StatusNotFound {
			t.Fatalf("GET %s = %d, want 404", target, resp.StatusCode)
		}
	}
}

func TestServeTemplate(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/templates/report.html", nil), -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestListReports(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.tracker.Save(context.Background(), report.ReportRecord{
		ID:       "r-1",
		Filename: "CR_Smith_Jane_2020-01-01.pdf",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", "/reports", nil), -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "CR_Smith_Jane_2020-01-01.pdf") {
		t.Fatalf("listing missing record:\n%s", body)
	}
}

func TestListReports_BadSinceDate(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/reports?since=not-a-date", nil), -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestExportReports(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.tracker.Save(context.Background(), report.ReportRecord{
		ID:       "r-1",
		Filename: "CR_Smith_Jane_2020-01-01.pdf",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", "/reports/export", nil), -1)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type: %q", got)
	}

	body, _ := io.ReadAll(resp.Body)
	// XLSX files are zip archives.
	if len(body) < 2 || body[0] != 'P' || body[1] != 'K' {
		t.Fatalf("export does not look like a workbook")
	}
}
