package service

import (
	"context"
	"sort"
	"time"

	"personal-days-bot/internal/models"
	"personal-days-bot/internal/repository"
	"personal-days-bot/pkg/blackout"
	"personal-days-bot/pkg/dates"

	"github.com/sirupsen/logrus"
)

type ExceptionService struct {
	repo repository.ExceptionRepository
	loc  *time.Location
}

func NewExceptionService(repo repository.ExceptionRepository, loc *time.Location) *ExceptionService {
	return &ExceptionService{repo: repo, loc: loc}
}

// LoadFromJSON добавляет в лист исключений даты из JSON файла.
// Уже существующие даты не дублируются.
func (s *ExceptionService) LoadFromJSON(ctx context.Context, filePath string) (int, error) {
	days, err := blackout.ParseFile(filePath, s.loc)
	if err != nil {
		return 0, err
	}

	existing, err := s.repo.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	known := make(map[string]bool, len(existing))
	for _, ex := range existing {
		known[dates.Key(ex.Date, s.loc)] = true
	}

	var fresh []models.Exception
	for _, day := range days {
		key := dates.Key(day.Date, s.loc)
		if known[key] {
			continue
		}
		known[key] = true
		fresh = append(fresh, models.Exception{Date: day.Date, Reason: day.Reason})
	}

	if err := s.repo.BulkCreate(ctx, fresh); err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"file":  filePath,
		"added": len(fresh),
	}).Info("Exception dates loaded")

	return len(fresh), nil
}

// GetExceptions возвращает закрытые даты, начиная с from, по возрастанию
func (s *ExceptionService) GetExceptions(ctx context.Context, from time.Time) ([]models.Exception, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	from = dates.Day(from, s.loc)
	var upcoming []models.Exception
	for _, ex := range all {
		if !ex.Date.Before(from) {
			upcoming = append(upcoming, ex)
		}
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].Date.Before(upcoming[j].Date)
	})
	return upcoming, nil
}
