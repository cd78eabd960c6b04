package trackerbun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"consultation-report-service/report"
)

// Tracker stores report history in a Bun-backed database.
type Tracker struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string
}

// NewTracker creates a Bun-backed history tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now, IDGenerator: uuid.NewString}
}

// Init creates the history table when it does not exist yet.
func (t *Tracker) Init(ctx context.Context) error {
	if t == nil || t.DB == nil {
		return report.NewError(report.KindInternal, "tracker database not configured", nil)
	}
	_, err := t.DB.NewCreateTable().
		Model((*recordModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Save inserts a history record, assigning an ID and timestamp if missing.
func (t *Tracker) Save(ctx context.Context, record report.ReportRecord) (string, error) {
	if t == nil || t.DB == nil {
		return "", report.NewError(report.KindInternal, "tracker database not configured", nil)
	}
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = t.now()
	}
	if record.Filename == "" {
		return "", report.NewError(report.KindValidation, "report filename is required", nil)
	}

	model := modelFromRecord(record)
	if _, err := t.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Get returns a record by ID.
func (t *Tracker) Get(ctx context.Context, id string) (report.ReportRecord, error) {
	if t == nil || t.DB == nil {
		return report.ReportRecord{}, report.NewError(report.KindInternal, "tracker database not configured", nil)
	}
	if id == "" {
		return report.ReportRecord{}, report.NewError(report.KindValidation, "report ID is required", nil)
	}

	model := new(recordModel)
	err := t.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return report.ReportRecord{}, report.NewError(report.KindNotFound, fmt.Sprintf("report %q not found", id), nil)
		}
		return report.ReportRecord{}, err
	}
	return model.toRecord(), nil
}

// List returns records matching a filter, newest first.
func (t *Tracker) List(ctx context.Context, filter report.HistoryFilter) ([]report.ReportRecord, error) {
	if t == nil || t.DB == nil {
		return nil, report.NewError(report.KindInternal, "tracker database not configured", nil)
	}

	models := make([]recordModel, 0)
	query := t.DB.NewSelect().Model(&models)
	if filter.PatientLastName != "" {
		query = query.Where("patient_last_name = ?", filter.PatientLastName)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	query = query.Order("created_at DESC")

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	records := make([]report.ReportRecord, 0, len(models))
	for _, model := range models {
		records = append(records, model.toRecord())
	}
	return records, nil
}

type recordModel struct {
	bun.BaseModel `bun:"table:report_records,alias:report_records"`

	ID               string    `bun:",pk"`
	Filename         string    `bun:",notnull"`
	ClinicName       string    `bun:"clinic_name"`
	PhysicianName    string    `bun:"physician_name"`
	PatientFirstName string    `bun:"patient_first_name"`
	PatientLastName  string    `bun:"patient_last_name"`
	PatientDOB       time.Time `bun:"patient_dob,nullzero"`
	RequestAddr      string    `bun:"request_addr"`
	Size             int64     `bun:"size"`
	CreatedAt        time.Time `bun:"created_at"`
}

func modelFromRecord(record report.ReportRecord) recordModel {
	return recordModel{
		ID:               record.ID,
		Filename:         record.Filename,
		ClinicName:       record.ClinicName,
		PhysicianName:    record.PhysicianName,
		PatientFirstName: record.PatientFirstName,
		PatientLastName:  record.PatientLastName,
		PatientDOB:       record.PatientDOB,
		RequestAddr:      record.RequestAddr,
		Size:             record.Size,
		CreatedAt:        record.CreatedAt,
	}
}

func (m recordModel) toRecord() report.ReportRecord {
	return report.ReportRecord{
		ID:               m.ID,
		Filename:         m.Filename,
		ClinicName:       m.ClinicName,
		PhysicianName:    m.PhysicianName,
		PatientFirstName: m.PatientFirstName,
		PatientLastName:  m.PatientLastName,
		PatientDOB:       m.PatientDOB,
		RequestAddr:      m.RequestAddr,
		Size:             m.Size,
		CreatedAt:        m.CreatedAt,
	}
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) nextID() string {
	if t.IDGenerator != nil {
		return t.IDGenerator()
	}
	return uuid.NewString()
}
