package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/vitals-tracker/constants"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
	"github.com/joseph-ayodele/vitals-tracker/internal/readings"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

const (
	readingsSheet = "Readings"
	legendSheet   = "Legend"
)

// Lister is satisfied by *readings.Service.
type Lister interface {
	List(ctx context.Context, profileID uuid.UUID, f readings.ListFilter) ([]*entity.Reading, error)
}

// Service produces XLSX bytes for exports.
type Service struct {
	readings Lister
	logger   *slog.Logger
}

func NewService(readings Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{readings: readings, logger: logger}
}

// Request selects what to export.
// If only From is provided -> From..today (inclusive).
// If only To is provided   -> beginning..To (inclusive).
// If neither is provided   -> all readings for profile.
type Request struct {
	ProfileID  uuid.UUID
	From       *time.Time
	To         *time.Time
	BPCategory constants.BPCategory
}

var headers = []string{
	"Measured At",
	"Height (cm)",
	"Weight (kg)",
	"BMI",
	"Standard Weight (kg)",
	"Systolic (mmHg)",
	"Diastolic (mmHg)",
	"Pulse (bpm)",
	"BMI Category",
	"BP Category",
	"Notes",
	"Source Images",
}

// ExportReadingsXLSX returns a workbook with one row per reading, newest first.
func (s *Service) ExportReadingsXLSX(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()

	// Dates are whole days in UTC
	var fromDate, toDate *time.Time
	if req.From != nil {
		f := time.Date(req.From.Year(), req.From.Month(), req.From.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if req.To != nil {
		t := time.Date(req.To.Year(), req.To.Month(), req.To.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		toDate = &t
	}

	recs, err := s.readings.List(ctx, req.ProfileID, readings.ListFilter{Start: fromDate, End: toDate, BPCategory: req.BPCategory})
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(readingsSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(readingsSheet, "A1", last, bold)

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(readingsSheet, cell, v)
		}

		write(1, r.MeasuredAt.UTC().Format("2006-01-02 15:04"))
		// absent values stay blank cells, never 0
		for j, field := range vitals.Fields {
			if v := r.Get(field); v != nil {
				write(j+2, *v)
			}
		}
		write(9, string(vitals.BMICategory(r.BMI)))
		write(10, string(vitals.BPCategory(r.Systolic, r.Diastolic)))
		if r.Notes != nil {
			write(11, truncate(*r.Notes, 140))
		}
		write(12, len(r.SourceImages))
	}

	_ = f.SetColWidth(readingsSheet, "A", "A", 18) // date
	_ = f.SetColWidth(readingsSheet, "B", "H", 12) // measurements
	_ = f.SetColWidth(readingsSheet, "I", "J", 22) // categories
	_ = f.SetColWidth(readingsSheet, "K", "K", 48) // notes
	_ = f.SetColWidth(readingsSheet, "L", "L", 14)
	_ = f.SetPanes(readingsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := writeLegend(f, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"profile_id", req.ProfileID.String(),
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// writeLegend lists the plausible range of every field and the blood
// pressure classes.
func writeLegend(f *excelize.File, bold int) error {
	if _, err := f.NewSheet(legendSheet); err != nil {
		return err
	}
	_ = f.SetSheetRow(legendSheet, "A1", &[]any{"Field", "Min", "Max", "Unit"})
	for i, field := range vitals.Fields {
		r := vitals.Ranges[field]
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(legendSheet, cell, &[]any{string(field), r.Min, r.Max, r.Unit})
	}
	_ = f.SetCellValue(legendSheet, "F1", "BP Categories")
	for i, c := range constants.BPCategoriesAsStringSlice() {
		cell, _ := excelize.CoordinatesToCellName(6, i+2)
		_ = f.SetCellValue(legendSheet, cell, c)
	}
	_ = f.SetCellStyle(legendSheet, "A1", "F1", bold)
	_ = f.SetColWidth(legendSheet, "A", "A", 20)
	_ = f.SetColWidth(legendSheet, "F", "F", 24)
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
