package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"personal-days-bot/internal/repository"
	"personal-days-bot/pkg/dates"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Requests"

var exportHeader = []interface{}{
	"#", "Submitted at", "Name", "Requested date", "Status", "Comment", "School year", "Email",
}

// ExportService выгружает реестр заявок в .xlsx для администрации
type ExportService struct {
	repo   repository.LeaveRequestRepository
	loc    *time.Location
	now    func() time.Time
	logger *logrus.Logger
}

func NewExportService(repo repository.LeaveRequestRepository, loc *time.Location) *ExportService {
	return &ExportService{repo: repo, loc: loc, now: time.Now, logger: newLogger()}
}

// ExportLedger возвращает файл и предлагаемое имя файла
func (s *ExportService) ExportLedger(ctx context.Context) (*bytes.Buffer, string, error) {
	requests, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load requests: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, "", err
	}

	f.SetColWidth(exportSheet, "B", "B", 20)
	f.SetColWidth(exportSheet, "C", "C", 28)
	f.SetColWidth(exportSheet, "D", "E", 14)
	f.SetColWidth(exportSheet, "F", "F", 40)
	f.SetColWidth(exportSheet, "H", "H", 30)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, "", err
	}
	f.SetCellStyle(exportSheet, "A1", "H1", headerStyle)

	for i, req := range requests {
		requested := req.RawDate
		if req.HasValidDate() {
			requested = dates.Format(req.RequestedDate, s.loc)
		}

		submitted := ""
		if !req.SubmittedAt.IsZero() {
			submitted = req.SubmittedAt.In(s.loc).Format("02/01/2006 15:04:05")
		}

		row := []interface{}{
			int(req.ID), submitted, req.RequesterName, requested,
			string(req.Status), req.Comment, req.PeriodLabel, req.RequesterEmail,
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, "", err
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.WithError(err).Error("Failed to write workbook")
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	filename := fmt.Sprintf("personal_days_%s.xlsx", s.now().In(s.loc).Format("2006-01-02"))
	return buf, filename, nil
}
