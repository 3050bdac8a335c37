package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const productID = "-//personal-days-bot//leave calendar//EN"

// ICSFeed ведет общий календарь администрации в одном .ics файле.
// Файл можно подписать в любом календарном клиенте.
type ICSFeed struct {
	path string
	name string
	now  func() time.Time

	mu sync.Mutex
}

func NewICSFeed(path, name string) *ICSFeed {
	return &ICSFeed{path: path, name: name, now: time.Now}
}

// CreateAllDayEvent добавляет событие [date, date+1)
func (f *ICSFeed) CreateAllDayEvent(ctx context.Context, date time.Time, title, description, color string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.load()
	if err != nil {
		return err
	}

	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	event := cal.AddEvent(uuid.NewString())
	event.SetDtStampTime(f.now().UTC())
	event.SetAllDayStartAt(start)
	event.SetAllDayEndAt(start.AddDate(0, 0, 1))
	event.SetSummary(title)
	if description != "" {
		event.SetDescription(description)
	}
	if color != "" {
		event.SetProperty(ics.ComponentProperty("COLOR"), color)
	}

	return f.save(cal)
}

// Events возвращает все события файла
func (f *ICSFeed) Events() ([]*ics.VEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.load()
	if err != nil {
		return nil, err
	}
	return cal.Events(), nil
}

func (f *ICSFeed) load() (*ics.Calendar, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		cal := ics.NewCalendar()
		cal.SetMethod(ics.MethodPublish)
		cal.SetProductId(productID)
		if f.name != "" {
			cal.SetName(f.name)
		}
		return cal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", f.path, err)
	}
	return cal, nil
}

// save пишет во временный файл и переименовывает его
func (f *ICSFeed) save(cal *ics.Calendar) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create calendar dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calendar-*.ics")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := cal.SerializeTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("serialize calendar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.path)
}
