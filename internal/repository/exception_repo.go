package repository

import (
	"context"
	"strings"
	"time"

	"personal-days-bot/internal/models"
	"personal-days-bot/pkg/dates"

	"github.com/sirupsen/logrus"
)

type ExceptionRepository interface {
	GetAll(ctx context.Context) ([]models.Exception, error)
	Create(ctx context.Context, exception *models.Exception) error
	BulkCreate(ctx context.Context, exceptions []models.Exception) error
}

// SheetExceptionRepository читает лист exceptions: [дата, причина]
type SheetExceptionRepository struct {
	store  TabularStore
	loc    *time.Location
	logger *logrus.Logger
}

func NewSheetExceptionRepository(store TabularStore, loc *time.Location) *SheetExceptionRepository {
	return &SheetExceptionRepository{store: store, loc: loc, logger: logrus.StandardLogger()}
}

func (r *SheetExceptionRepository) GetAll(ctx context.Context) ([]models.Exception, error) {
	rows, err := r.store.ReadAll(ctx, SheetExceptions)
	if err != nil {
		return nil, err
	}

	exceptions := make([]models.Exception, 0, len(rows))
	for i, row := range rows {
		raw := strings.TrimSpace(row.Cell(models.ColExceptionDate))
		if raw == "" {
			continue
		}

		day, err := dates.ParseStored(raw, r.loc)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"row":   i + 1,
				"value": raw,
			}).Warn("Skipping exception with unreadable date")
			continue
		}

		exceptions = append(exceptions, models.Exception{
			Date:   day,
			Reason: strings.TrimSpace(row.Cell(models.ColExceptionReason)),
		})
	}
	return exceptions, nil
}

func (r *SheetExceptionRepository) Create(ctx context.Context, exception *models.Exception) error {
	_, err := r.store.Append(ctx, SheetExceptions, Row{
		dates.Key(exception.Date, r.loc),
		exception.Reason,
	})
	return err
}

func (r *SheetExceptionRepository) BulkCreate(ctx context.Context, exceptions []models.Exception) error {
	for i := range exceptions {
		if err := r.Create(ctx, &exceptions[i]); err != nil {
			return err
		}
	}
	return nil
}
