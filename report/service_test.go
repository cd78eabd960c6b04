package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, engine PDFEngine) (*Service, *MemoryStore, *MemoryTracker) {
	t.Helper()

	renderer := newTestRenderer(t)
	store := NewMemoryStore()
	tracker := NewMemoryTracker()

	if engine == nil {
		engine = PDFEngineFunc(func(ctx context.Context, req PDFRequest) ([]byte, error) {
			return []byte("%PDF-1.7 fake"), nil
		})
	}

	svc := &Service{
		Store:    store,
		Engine:   engine,
		Renderer: renderer,
		Tracker:  tracker,
		Now: func() time.Time {
			return time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
		},
		NewID: func() string { return "test-id-1" },
	}
	return svc, store, tracker
}

func TestServiceGenerate(t *testing.T) {
	svc, store, tracker := newTestService(t, nil)

	out, err := svc.Generate(context.Background(), GenerateInput{
		Submission:   sampleSubmission(t),
		Logo:         strings.NewReader("png-bytes"),
		LogoFilename: "logo.png",
		BaseURL:      "http://localhost:8080",
		RequestAddr:  "192.0.2.10",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if out.Filename != "CR_Smith_Jane_2020-01-01.pdf" {
		t.Fatalf("unexpected filename: %q", out.Filename)
	}
	if string(out.PDF) != "%PDF-1.7 fake" {
		t.Fatalf("unexpected pdf bytes: %q", out.PDF)
	}
	if out.LogoKey != "logo.png" {
		t.Fatalf("unexpected logo key: %q", out.LogoKey)
	}
	if out.RecordID != "test-id-1" {
		t.Fatalf("unexpected record ID: %q", out.RecordID)
	}

	keys := store.Keys()
	if len(keys) != 2 || keys[0] != "CR_Smith_Jane_2020-01-01.pdf" || keys[1] != "logo.png" {
		t.Fatalf("unexpected stored keys: %v", keys)
	}

	records, err := tracker.List(context.Background(), HistoryFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one history record, got %d", len(records))
	}
	if records[0].Filename != out.Filename || records[0].PatientLastName != "Smith" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestServiceGenerate_LogoURLInRenderedHTML(t *testing.T) {
	var captured []byte
	engine := PDFEngineFunc(func(ctx context.Context, req PDFRequest) ([]byte, error) {
		captured = req.HTML
		return []byte("%PDF"), nil
	})
	svc, _, _ := newTestService(t, engine)

	_, err := svc.Generate(context.Background(), GenerateInput{
		Submission:   sampleSubmission(t),
		Logo:         strings.NewReader("png-bytes"),
		LogoFilename: "my logo.png",
		BaseURL:      "http://localhost:8080/",
		RequestAddr:  "192.0.2.10",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(string(captured), "http://localhost:8080/uploads/my_logo.png") {
		t.Fatalf("rendered HTML missing logo URL:\n%s", captured)
	}
}

func TestServiceGenerate_EngineFailure(t *testing.T) {
	engine := PDFEngineFunc(func(ctx context.Context, req PDFRequest) ([]byte, error) {
		return nil, errors.New("chromium crashed")
	})
	svc, store, tracker := newTestService(t, engine)

	_, err := svc.Generate(context.Background(), GenerateInput{
		Submission:   sampleSubmission(t),
		Logo:         strings.NewReader("png-bytes"),
		LogoFilename: "logo.png",
		BaseURL:      "http://localhost:8080",
	})
	if err == nil {
		t.Fatalf("expected engine failure")
	}
	if !strings.Contains(err.Error(), "report generation failed") {
		t.Fatalf("unexpected error: %v", err)
	}
	if ge := AsGoError(err); ge.TextCode != "internal" {
		t.Fatalf("unexpected text code: %q", ge.TextCode)
	}

	keys := store.Keys()
	if len(keys) != 1 || keys[0] != "logo.png" {
		t.Fatalf("no report should be stored on failure, got %v", keys)
	}
	records, _ := tracker.List(context.Background(), HistoryFilter{})
	if len(records) != 0 {
		t.Fatalf("no history should be recorded on failure, got %v", records)
	}
}

func TestServiceGenerate_RejectsDisallowedLogo(t *testing.T) {
	svc, store, _ := newTestService(t, nil)

	_, err := svc.Generate(context.Background(), GenerateInput{
		Submission:   sampleSubmission(t),
		Logo:         strings.NewReader("gif-bytes"),
		LogoFilename: "logo.gif",
		BaseURL:      "http://localhost:8080",
	})
	if err == nil {
		t.Fatalf("expected rejection for .gif logo")
	}
	if ge := AsGoError(err); ge.TextCode != "validation" {
		t.Fatalf("unexpected text code: %q", ge.TextCode)
	}
	if keys := store.Keys(); len(keys) != 0 {
		t.Fatalf("nothing should be written for a rejected logo, got %v", keys)
	}
}

func TestServiceGenerate_MissingLogoReader(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.Generate(context.Background(), GenerateInput{
		Submission: sampleSubmission(t),
	})
	if err == nil {
		t.Fatalf("expected error for missing logo")
	}
	if ge := AsGoError(err); ge.TextCode != "validation" {
		t.Fatalf("unexpected text code: %q", ge.TextCode)
	}
}

func TestServiceGenerate_TrackerFailureIsNotFatal(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	svc.NewID = func() string { return "" } // MemoryTracker rejects empty IDs

	out, err := svc.Generate(context.Background(), GenerateInput{
		Submission:   sampleSubmission(t),
		Logo:         strings.NewReader("png-bytes"),
		LogoFilename: "logo.png",
		BaseURL:      "http://localhost:8080",
	})
	if err != nil {
		t.Fatalf("tracker failure should not fail the request: %v", err)
	}
	if len(out.PDF) == 0 {
		t.Fatalf("expected pdf bytes despite tracker failure")
	}
}
