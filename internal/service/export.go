package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"bombona_tracker/internal/models"

	"github.com/xuri/excelize/v2"
)

const exportDateLayout = "02/01/2006 15:04"

var exportHeader = []string{"ID", "Status", "Sector", "Location Detail", "Custodian", "LastUpdate"}

type ExportService struct {
	containers Containers
	loc        *time.Location
}

func NewExportService(c Containers, loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.Local
	}
	return &ExportService{containers: c, loc: loc}
}

var _ Export = (*ExportService)(nil)

// FileName returns "bombonas-YYYY-MM-DD.<ext>" for the export-local date of now.
func (s *ExportService) FileName(ext string, now time.Time) string {
	return fmt.Sprintf("bombonas-%s.%s", now.In(s.loc).Format("2006-01-02"), ext)
}

func (s *ExportService) rows(ctx context.Context, q ContainerQuery) ([][]string, error) {
	list, err := s.containers.List(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		rows = append(rows, s.row(c))
	}
	return rows, nil
}

func (s *ExportService) row(c models.Container) []string {
	sector, _ := models.SplitLocation(c.Location)
	label := string(c.Status)
	if c.Status.Valid() {
		label = c.Status.Label()
	}
	updated := ""
	if !c.LastUpdate.IsZero() {
		updated = c.LastUpdate.In(s.loc).Format(exportDateLayout)
	}
	return []string{c.IdentificationNumber, label, sector, c.Location, c.Custodian, updated}
}

// CSV writes the header and one row per matching container. It returns the row count.
func (s *ExportService) CSV(ctx context.Context, w io.Writer, q ContainerQuery) (int, error) {
	rows, err := s.rows(ctx, q)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return 0, fmt.Errorf("write csv rows: %w", err)
	}
	return len(rows), nil
}

const xlsxSheet = "Bombonas"

var xlsxColumnWidths = []float64{18, 14, 18, 32, 28, 18}

// XLSX writes the same table as CSV into a single-sheet workbook.
func (s *ExportService) XLSX(ctx context.Context, w io.Writer, q ContainerQuery) (int, error) {
	rows, err := s.rows(ctx, q)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return 0, fmt.Errorf("create header style: %w", err)
	}

	for col, header := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return 0, err
		}
		if err := f.SetCellValue(xlsxSheet, cell, header); err != nil {
			return 0, fmt.Errorf("write header %q: %w", header, err)
		}
		if err := f.SetCellStyle(xlsxSheet, cell, cell, headerStyle); err != nil {
			return 0, fmt.Errorf("style header %q: %w", header, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return 0, err
		}
		if err := f.SetColWidth(xlsxSheet, name, name, xlsxColumnWidths[col]); err != nil {
			return 0, fmt.Errorf("set width of %s: %w", name, err)
		}
	}

	for i, r := range rows {
		for col, v := range r {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return 0, err
			}
			if err := f.SetCellValue(xlsxSheet, cell, v); err != nil {
				return 0, fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}

	if err := f.SetPanes(xlsxSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return 0, fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(rows), nil
}
