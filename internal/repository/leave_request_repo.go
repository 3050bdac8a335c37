package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"personal-days-bot/internal/models"
	"personal-days-bot/pkg/dates"
)

type LeaveRequestRepository interface {
	GetAll(ctx context.Context) ([]models.LeaveRequest, error)
	GetByID(ctx context.Context, id models.RequestID) (*models.LeaveRequest, error)
	Create(ctx context.Context, req *models.LeaveRequest) error
	UpdateStatus(ctx context.Context, id models.RequestID, status models.Status) error
}

// SheetLeaveRequestRepository хранит заявки в листе requests, по строке на заявку
type SheetLeaveRequestRepository struct {
	store TabularStore
	loc   *time.Location
}

func NewSheetLeaveRequestRepository(store TabularStore, loc *time.Location) *SheetLeaveRequestRepository {
	return &SheetLeaveRequestRepository{store: store, loc: loc}
}

func (r *SheetLeaveRequestRepository) GetAll(ctx context.Context) ([]models.LeaveRequest, error) {
	rows, err := r.store.ReadAll(ctx, SheetRequests)
	if err != nil {
		return nil, err
	}

	requests := make([]models.LeaveRequest, 0, len(rows))
	for i, row := range rows {
		requests = append(requests, r.decode(models.RequestID(i+1), row))
	}
	return requests, nil
}

func (r *SheetLeaveRequestRepository) GetByID(ctx context.Context, id models.RequestID) (*models.LeaveRequest, error) {
	rows, err := r.store.ReadAll(ctx, SheetRequests)
	if err != nil {
		return nil, err
	}

	if int(id) < 1 || int(id) > len(rows) {
		return nil, nil
	}

	req := r.decode(id, rows[id-1])
	return &req, nil
}

func (r *SheetLeaveRequestRepository) Create(ctx context.Context, req *models.LeaveRequest) error {
	position, err := r.store.Append(ctx, SheetRequests, r.encode(req))
	if err != nil {
		return err
	}
	req.ID = models.RequestID(position)
	return nil
}

func (r *SheetLeaveRequestRepository) UpdateStatus(ctx context.Context, id models.RequestID, status models.Status) error {
	err := r.store.UpdateCell(ctx, SheetRequests, int(id), models.ColStatus, string(status))
	if errors.Is(err, ErrRowNotFound) {
		return fmt.Errorf("request %d: %w", id, err)
	}
	return err
}

func (r *SheetLeaveRequestRepository) encode(req *models.LeaveRequest) Row {
	row := make(Row, models.RequestColumns)
	row[models.ColSubmittedAt] = req.SubmittedAt.Format(time.RFC3339)
	row[models.ColRequesterName] = req.RequesterName
	row[models.ColRequestedDate] = dates.Key(req.RequestedDate, r.loc)
	row[models.ColStatus] = string(req.Status)
	row[models.ColComment] = req.Comment
	row[models.ColPeriodLabel] = req.PeriodLabel
	row[models.ColRequesterEmail] = req.RequesterEmail
	return row
}

// decode не падает на битых ячейках: нечитаемая дата остается нулевой
func (r *SheetLeaveRequestRepository) decode(id models.RequestID, row Row) models.LeaveRequest {
	req := models.LeaveRequest{
		ID:             id,
		RequesterName:  row.Cell(models.ColRequesterName),
		RawDate:        row.Cell(models.ColRequestedDate),
		Status:         models.Status(row.Cell(models.ColStatus)),
		Comment:        row.Cell(models.ColComment),
		PeriodLabel:    row.Cell(models.ColPeriodLabel),
		RequesterEmail: row.Cell(models.ColRequesterEmail),
	}

	if ts, err := time.Parse(time.RFC3339, row.Cell(models.ColSubmittedAt)); err == nil {
		req.SubmittedAt = ts
	} else if day, err := dates.ParseStored(row.Cell(models.ColSubmittedAt), r.loc); err == nil {
		req.SubmittedAt = day
	}

	if day, err := dates.ParseStored(req.RawDate, r.loc); err == nil {
		req.RequestedDate = day
	}

	return req
}
