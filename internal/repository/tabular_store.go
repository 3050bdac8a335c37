package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"personal-days-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Листы хранилища
const (
	SheetRequests   = "requests"
	SheetExceptions = "exceptions"
	SheetAdmins     = "admins"
)

var ErrRowNotFound = errors.New("row not found")

// Row - значения ячеек одной строки листа
type Row []string

// Cell возвращает значение колонки или пустую строку
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// TabularStore - хранилище из листов со строками.
// Строки нумеруются с 1, порядок строк - порядок добавления.
type TabularStore interface {
	ReadAll(ctx context.Context, sheet string) ([]Row, error)
	Append(ctx context.Context, sheet string, row Row) (int, error)
	UpdateCell(ctx context.Context, sheet string, rowIndex, colIndex int, value string) error
}

type GormTabularStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormTabularStore(db *gorm.DB) (*GormTabularStore, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// Автомиграция - создает таблицу если ее нет
	if err := db.AutoMigrate(&models.SheetRow{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate sheet_rows table")
		return nil, err
	}

	return &GormTabularStore{db: db, logger: logger}, nil
}

func (s *GormTabularStore) ReadAll(ctx context.Context, sheet string) ([]Row, error) {
	var records []models.SheetRow
	err := s.db.WithContext(ctx).
		Where("sheet = ?", sheet).
		Order("position ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row(rec.Cells))
	}
	return rows, nil
}

func (s *GormTabularStore) Append(ctx context.Context, sheet string, row Row) (int, error) {
	var position int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&models.SheetRow{}).
			Where("sheet = ?", sheet).
			Select("COALESCE(MAX(position), 0)").
			Scan(&last).Error; err != nil {
			return err
		}

		record := &models.SheetRow{
			Sheet:    sheet,
			Position: last + 1,
			Cells:    append([]string(nil), row...),
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		position = record.Position
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	s.logger.WithFields(logrus.Fields{
		"sheet":    sheet,
		"position": position,
	}).Debug("Row appended")

	return position, nil
}

func (s *GormTabularStore) UpdateCell(ctx context.Context, sheet string, rowIndex, colIndex int, value string) error {
	if colIndex < 0 {
		return fmt.Errorf("invalid column %d", colIndex)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.SheetRow
		err := tx.Where("sheet = ? AND position = ?", sheet, rowIndex).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRowNotFound
		}
		if err != nil {
			return fmt.Errorf("load row %d of sheet %s: %w", rowIndex, sheet, err)
		}

		for len(record.Cells) <= colIndex {
			record.Cells = append(record.Cells, "")
		}
		record.Cells[colIndex] = value

		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("update row %d of sheet %s: %w", rowIndex, sheet, err)
		}
		return nil
	})
}

// MemoryTabularStore хранит листы в памяти (тесты и локальный запуск)
type MemoryTabularStore struct {
	mu     sync.RWMutex
	sheets map[string][]Row
}

func NewMemoryTabularStore() *MemoryTabularStore {
	return &MemoryTabularStore{sheets: make(map[string][]Row)}
}

func (s *MemoryTabularStore) ReadAll(_ context.Context, sheet string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]Row, 0, len(s.sheets[sheet]))
	for _, row := range s.sheets[sheet] {
		rows = append(rows, append(Row(nil), row...))
	}
	return rows, nil
}

func (s *MemoryTabularStore) Append(_ context.Context, sheet string, row Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sheets[sheet] = append(s.sheets[sheet], append(Row(nil), row...))
	return len(s.sheets[sheet]), nil
}

func (s *MemoryTabularStore) UpdateCell(_ context.Context, sheet string, rowIndex, colIndex int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.sheets[sheet]
	if rowIndex < 1 || rowIndex > len(rows) {
		return ErrRowNotFound
	}
	if colIndex < 0 {
		return fmt.Errorf("invalid column %d", colIndex)
	}

	row := rows[rowIndex-1]
	for len(row) <= colIndex {
		row = append(row, "")
	}
	row[colIndex] = value
	rows[rowIndex-1] = row
	return nil
}
