package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the full application configuration. Nothing is hardcoded at
// call sites; every value flows from here.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	PDF     PDFConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string
	Port string
	// BaseURL overrides the externally reachable root used to build logo
	// URLs for the PDF engine. Empty means derive it from the request.
	BaseURL string
}

// StorageConfig holds filesystem and database locations.
type StorageConfig struct {
	UploadDir    string
	TemplateDir  string
	DatabasePath string
}

// PDFConfig holds PDF engine settings.
type PDFConfig struct {
	Engine               string
	ChromiumPath         string
	WKHTMLTOPDFPath      string
	Headless             bool
	ChromiumArgs         []string
	TimeoutSeconds       int
	PageSize             string
	MarginTop            string
	MarginBottom         string
	MarginLeft           string
	MarginRight          string
	PrintBackground      bool
	Scale                float64
	ExternalAssetsPolicy string
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
		},
		Storage: StorageConfig{
			UploadDir:    "uploads",
			TemplateDir:  "templates",
			DatabasePath: "reports.db",
		},
		PDF: PDFConfig{
			Engine:          "chromium",
			Headless:        true,
			TimeoutSeconds:  30,
			PageSize:        "A4",
			MarginTop:       "12mm",
			MarginBottom:    "12mm",
			MarginLeft:      "10mm",
			MarginRight:     "10mm",
			PrintBackground: true,
			Scale:           1.0,
		},
	}
}

// Load merges defaults with REPORT_-prefixed environment variables, e.g.
// REPORT_SERVER_PORT or REPORT_PDF_CHROMIUM_PATH.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("report")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Defaults()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("storage.upload_dir", d.Storage.UploadDir)
	v.SetDefault("storage.template_dir", d.Storage.TemplateDir)
	v.SetDefault("storage.database_path", d.Storage.DatabasePath)
	v.SetDefault("pdf.engine", d.PDF.Engine)
	v.SetDefault("pdf.chromium_path", d.PDF.ChromiumPath)
	v.SetDefault("pdf.wkhtmltopdf_path", d.PDF.WKHTMLTOPDFPath)
	v.SetDefault("pdf.headless", d.PDF.Headless)
	v.SetDefault("pdf.chromium_args", strings.Join(d.PDF.ChromiumArgs, ","))
	v.SetDefault("pdf.timeout_seconds", d.PDF.TimeoutSeconds)
	v.SetDefault("pdf.page_size", d.PDF.PageSize)
	v.SetDefault("pdf.margin_top", d.PDF.MarginTop)
	v.SetDefault("pdf.margin_bottom", d.PDF.MarginBottom)
	v.SetDefault("pdf.margin_left", d.PDF.MarginLeft)
	v.SetDefault("pdf.margin_right", d.PDF.MarginRight)
	v.SetDefault("pdf.print_background", d.PDF.PrintBackground)
	v.SetDefault("pdf.scale", d.PDF.Scale)
	v.SetDefault("pdf.external_assets_policy", d.PDF.ExternalAssetsPolicy)

	return Config{
		Server: ServerConfig{
			Host:    v.GetString("server.host"),
			Port:    v.GetString("server.port"),
			BaseURL: v.GetString("server.base_url"),
		},
		Storage: StorageConfig{
			UploadDir:    v.GetString("storage.upload_dir"),
			TemplateDir:  v.GetString("storage.template_dir"),
			DatabasePath: v.GetString("storage.database_path"),
		},
		PDF: PDFConfig{
			Engine:               v.GetString("pdf.engine"),
			ChromiumPath:         v.GetString("pdf.chromium_path"),
			WKHTMLTOPDFPath:      v.GetString("pdf.wkhtmltopdf_path"),
			Headless:             v.GetBool("pdf.headless"),
			ChromiumArgs:         splitCSV(v.GetString("pdf.chromium_args")),
			TimeoutSeconds:       v.GetInt("pdf.timeout_seconds"),
			PageSize:             v.GetString("pdf.page_size"),
			MarginTop:            v.GetString("pdf.margin_top"),
			MarginBottom:         v.GetString("pdf.margin_bottom"),
			MarginLeft:           v.GetString("pdf.margin_left"),
			MarginRight:          v.GetString("pdf.margin_right"),
			PrintBackground:      v.GetBool("pdf.print_background"),
			Scale:                v.GetFloat64("pdf.scale"),
			ExternalAssetsPolicy: v.GetString("pdf.external_assets_policy"),
		},
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
