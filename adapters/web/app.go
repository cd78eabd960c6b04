package web

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	reportpdf "consultation-report-service/adapters/pdf"
	storefs "consultation-report-service/adapters/store/fs"
	trackerbun "consultation-report-service/adapters/tracker/bun"
	"consultation-report-service/config"
	"consultation-report-service/report"
)

// App holds the application dependencies behind the HTTP surface.
type App struct {
	Config    config.Config
	Logger    report.Logger
	Service   *report.Service
	Renderer  *report.Renderer
	Uploads   report.ArtifactStore
	Templates report.ArtifactStore
	Tracker   report.HistoryTracker

	chromium *reportpdf.ChromiumEngine
	db       *bun.DB
}

// NewApp wires storage, templates, the PDF engine, the history database
// and the generation service from configuration.
func NewApp(ctx context.Context, cfg config.Config, logger report.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.Storage.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	renderer, err := report.NewRenderer(cfg.Storage.TemplateDir)
	if err != nil {
		return nil, err
	}

	uploads := storefs.NewStore(cfg.Storage.UploadDir)
	templates := storefs.NewStore(cfg.Storage.TemplateDir)

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Renderer:  renderer,
		Uploads:   uploads,
		Templates: templates,
	}

	engine, err := app.buildEngine(cfg.PDF)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	app.db = bun.NewDB(sqldb, sqlitedialect.New())

	tracker := trackerbun.NewTracker(app.db)
	if err := tracker.Init(ctx); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	app.Tracker = tracker

	app.Service = &report.Service{
		Store:    uploads,
		Engine:   engine,
		Renderer: renderer,
		Tracker:  tracker,
		Logger:   logger,
		PDF:      pdfOptionsFromConfig(cfg.PDF),
	}

	return app, nil
}

// Close releases the PDF engine and database resources.
func (a *App) Close() error {
	if a.chromium != nil {
		_ = a.chromium.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) buildEngine(cfg config.PDFConfig) (report.PDFEngine, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Engine {
	case "", "chromium":
		a.chromium = &reportpdf.ChromiumEngine{
			BrowserPath: cfg.ChromiumPath,
			Headless:    cfg.Headless,
			Timeout:     timeout,
			Args:        cfg.ChromiumArgs,
		}
		return a.chromium, nil
	case "wkhtmltopdf":
		return reportpdf.WKHTMLTOPDFEngine{
			Command: cfg.WKHTMLTOPDFPath,
			Timeout: timeout,
		}, nil
	default:
		return nil, report.NewError(report.KindValidation, fmt.Sprintf("unknown pdf engine %q", cfg.Engine), nil)
	}
}

func pdfOptionsFromConfig(cfg config.PDFConfig) report.PDFOptions {
	printBackground := cfg.PrintBackground
	return report.PDFOptions{
		PageSize:             cfg.PageSize,
		PrintBackground:      &printBackground,
		Scale:                cfg.Scale,
		MarginTop:            cfg.MarginTop,
		MarginBottom:         cfg.MarginBottom,
		MarginLeft:           cfg.MarginLeft,
		MarginRight:          cfg.MarginRight,
		ExternalAssetsPolicy: report.PDFExternalAssetsPolicy(cfg.ExternalAssetsPolicy),
	}
}
