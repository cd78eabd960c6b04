package reportpdf

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"consultation-report-service/report"
)

// WKHTMLTOPDFEngine invokes wkhtmltopdf for HTML-to-PDF conversion.
type WKHTMLTOPDFEngine struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Render executes wkhtmltopdf using stdin/stdout for HTML/PDF.
func (e WKHTMLTOPDFEngine) Render(ctx context.Context, req report.PDFRequest) ([]byte, error) {
	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append([]string{}, e.Args...)
	args = append(args, "-", "-")
	cmd := exec.CommandContext(cmdCtx, cmdPath, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(injectBaseURL(req.HTML, req.Options.BaseURL))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, report.NewError(report.KindInternal, message, err)
	}
	return stdout.Bytes(), nil
}
