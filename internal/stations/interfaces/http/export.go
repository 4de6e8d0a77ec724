package http

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	stations "naturepark-cloud/internal/stations/domain"
)

// BuildMeasurementsXLSX renders a minimal XLSX for a measurement set.
func BuildMeasurementsXLSX(rows []stations.Measurement) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "measurements"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "measurement_type")
	_ = f.SetCellValue(sheet, "B1", "value")
	_ = f.SetCellValue(sheet, "C1", "recorded_at")
	for i, m := range rows {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), m.Type)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), m.Value)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), m.RecordedAt.UTC().Format(timeLayout))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStationReportPDF renders a station summary PDF with the data
// availability range and the most recent day of readings.
func BuildStationReportPDF(station *stations.Station, availability *stations.Availability, recent []stations.Measurement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Station Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Station: %s", station.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Name: %s", station.Name))
	pdf.Ln(5)
	if station.Location != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Location: %s", station.Location))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Active: %t", station.IsActive))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	if availability != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Data from: %s", availability.MinDate.Format(time.RFC3339)))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Data to: %s", availability.MaxDate.Format(time.RFC3339)))
		pdf.Ln(8)
	} else {
		pdf.Cell(0, 6, "No data available for this station.")
		pdf.Ln(8)
	}

	if len(recent) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 6, "Type", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Value", "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, "Recorded At", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, m := range recent {
			pdf.CellFormat(60, 6, m.Type, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, formatFloat(m.Value), "1", 0, "R", false, 0, "")
			pdf.CellFormat(60, 6, m.RecordedAt.UTC().Format(time.RFC3339), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
