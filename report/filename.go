package report

import (
	"fmt"
	"path"
	"strings"
)

// ReportFilename derives the deterministic artifact name for a submission:
// CR_<LastName>_<FirstName>_<YYYY-MM-DD>.pdf. Two patients sharing name and
// date of birth collide; the later write wins.
func ReportFilename(sub ConsultationSubmission) string {
	name := fmt.Sprintf("CR_%s_%s_%s.pdf",
		sub.PatientLastName,
		sub.PatientFirstName,
		sub.PatientDOB.Format(DateFormat),
	)
	return SanitizeFilename(name)
}

// SanitizeFilename reduces a client supplied name to a flat filename that
// cannot escape the upload directory. Path separators and parent references
// are stripped, spaces become underscores, and anything outside a small
// ASCII set is dropped. Returns "" when nothing safe remains.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}

	return strings.Trim(b.String(), "._")
}
