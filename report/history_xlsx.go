package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const historySheetName = "Reports"

var historyHeaders = []string{
	"ID", "Filename", "Clinic", "Physician", "Patient Last Name",
	"Patient First Name", "Date of Birth", "Requested From", "Size (bytes)", "Created At",
}

// WriteHistoryXLSX streams report history rows into an XLSX workbook.
func WriteHistoryXLSX(records []ReportRecord, w io.Writer) error {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	defaultSheet := file.GetSheetName(0)
	if defaultSheet != historySheetName {
		file.SetSheetName(defaultSheet, historySheetName)
	}

	stream, err := file.NewStreamWriter(historySheetName)
	if err != nil {
		return err
	}

	headerID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	dateFormat := "yyyy-mm-dd"
	dateID, err := file.NewStyle(&excelize.Style{CustomNumFmt: &dateFormat})
	if err != nil {
		return err
	}
	dateTimeFormat := "yyyy-mm-dd hh:mm:ss"
	dateTimeID, err := file.NewStyle(&excelize.Style{CustomNumFmt: &dateTimeFormat})
	if err != nil {
		return err
	}

	headers := make([]interface{}, len(historyHeaders))
	for i, label := range historyHeaders {
		headers[i] = excelize.Cell{StyleID: headerID, Value: label}
	}
	if err := stream.SetRow("A1", headers); err != nil {
		return err
	}

	for i, record := range records {
		cells := []interface{}{
			record.ID,
			record.Filename,
			record.ClinicName,
			record.PhysicianName,
			record.PatientLastName,
			record.PatientFirstName,
			excelize.Cell{StyleID: dateID, Value: record.PatientDOB},
			record.RequestAddr,
			record.Size,
			excelize.Cell{StyleID: dateTimeID, Value: record.CreatedAt},
		}
		if err := stream.SetRow(fmt.Sprintf("A%d", i+2), cells); err != nil {
			return err
		}
	}

	if err := stream.Flush(); err != nil {
		return err
	}
	_, err = file.WriteTo(w)
	return err
}
