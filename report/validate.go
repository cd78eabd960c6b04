package report

import (
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Form field names as submitted by the browser.
const (
	FieldClinicName       = "clinic_name"
	FieldClinicLogo       = "clinic_logo"
	FieldPhysicianName    = "physician_name"
	FieldPhysicianContact = "physician_contact"
	FieldPatientFirstName = "patient_first_name"
	FieldPatientLastName  = "patient_last_name"
	FieldPatientDOB       = "patient_dob"
	FieldPatientContact   = "patient_contact"
	FieldChiefComplaint   = "chief_complaint"
	FieldConsultationNote = "consultation_note"
)

// AllowedLogoExtensions is the fixed allow-list for logo uploads,
// compared case-insensitively.
var AllowedLogoExtensions = []string{".jpg", ".jpeg", ".png"}

// FieldErrors maps form field names to human readable messages.
type FieldErrors map[string][]string

// Add appends a message for a field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Has reports whether a field has at least one error.
func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

// DateNotFuture fails when the value is strictly after the current date.
// Comparison is at day granularity.
func DateNotFuture(value, now time.Time) error {
	if value.Format(DateFormat) > now.Format(DateFormat) {
		return NewError(KindValidation, "Date cannot be in the future.", nil)
	}
	return nil
}

// DigitsOnly fails unless the string is non-empty and every rune is a
// decimal digit.
func DigitsOnly(s string) error {
	if s == "" {
		return NewError(KindValidation, "This field should contain numbers only.", nil)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return NewError(KindValidation, "This field should contain numbers only.", nil)
		}
	}
	return nil
}

// LettersAndSpacesOnly fails unless every rune is an ASCII letter or a
// space.
func LettersAndSpacesOnly(s string) error {
	for _, r := range s {
		if r == ' ' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		return NewError(KindValidation, "This field must contain characters only.", nil)
	}
	return nil
}

// LogoExtensionAllowed checks a submitted filename against the allow-list.
func LogoExtensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedLogoExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("digits_only", func(fl validator.FieldLevel) bool {
		return DigitsOnly(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("alpha_space", func(fl validator.FieldLevel) bool {
		return LettersAndSpacesOnly(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("not_future", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return DateNotFuture(value, time.Now()) == nil
	})
	return v
}

// fieldMeta maps struct field names to form names and display labels.
var fieldMeta = map[string]struct{ name, label string }{
	"ClinicName":       {FieldClinicName, "Clinic name"},
	"ClinicLogo":       {FieldClinicLogo, "Clinic logo"},
	"PhysicianName":    {FieldPhysicianName, "Physician name"},
	"PhysicianContact": {FieldPhysicianContact, "Physician contact"},
	"PatientFirstName": {FieldPatientFirstName, "Patient first name"},
	"PatientLastName":  {FieldPatientLastName, "Patient last name"},
	"PatientDOB":       {FieldPatientDOB, "Date of birth"},
	"PatientContact":   {FieldPatientContact, "Patient contact"},
	"ChiefComplaint":   {FieldChiefComplaint, "Chief complaint"},
	"ConsultationNote": {FieldConsultationNote, "Consultation note"},
}

// ParseSubmission turns raw form values plus the logo upload into a typed
// submission, or a per-field error map. Fields are validated independently
// so a single pass reports every problem at once.
func ParseSubmission(values url.Values, logo *multipart.FileHeader) (ConsultationSubmission, FieldErrors) {
	ferrs := FieldErrors{}

	sub := ConsultationSubmission{
		ClinicName:       strings.TrimSpace(values.Get(FieldClinicName)),
		PhysicianName:    strings.TrimSpace(values.Get(FieldPhysicianName)),
		PhysicianContact: strings.TrimSpace(values.Get(FieldPhysicianContact)),
		PatientFirstName: strings.TrimSpace(values.Get(FieldPatientFirstName)),
		PatientLastName:  strings.TrimSpace(values.Get(FieldPatientLastName)),
		PatientContact:   strings.TrimSpace(values.Get(FieldPatientContact)),
		ChiefComplaint:   strings.TrimSpace(values.Get(FieldChiefComplaint)),
		ConsultationNote: strings.TrimSpace(values.Get(FieldConsultationNote)),
	}

	if rawDOB := strings.TrimSpace(values.Get(FieldPatientDOB)); rawDOB == "" {
		ferrs.Add(FieldPatientDOB, "This field is required.")
	} else if dob, err := time.Parse(DateFormat, rawDOB); err != nil {
		ferrs.Add(FieldPatientDOB, "Invalid date format. Please use YYYY-MM-DD.")
	} else {
		sub.PatientDOB = dob
	}

	if logo == nil || logo.Filename == "" {
		ferrs.Add(FieldClinicLogo, "This field is required.")
	} else if !LogoExtensionAllowed(logo.Filename) {
		ferrs.Add(FieldClinicLogo, "Images only!")
	} else {
		sub.ClinicLogo = logo.Filename
	}

	if err := validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				meta, known := fieldMeta[fe.StructField()]
				if !known {
					continue
				}
				// Decode already produced a message for this field.
				if ferrs.Has(meta.name) {
					continue
				}
				ferrs.Add(meta.name, messageFor(fe.Tag(), meta.label))
			}
		} else {
			ferrs.Add(FieldClinicName, "Submission could not be validated.")
		}
	}

	if len(ferrs) > 0 {
		return ConsultationSubmission{}, ferrs
	}
	return sub, nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = verrs
	return true
}

func messageFor(tag, label string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "digits_only":
		return "This field should contain numbers only."
	case "alpha_space":
		return label + " must contain characters only."
	case "not_future":
		return label + " cannot be in the future."
	default:
		return label + " is invalid."
	}
}
