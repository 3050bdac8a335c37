package models

import (
	"fmt"
	"time"
)

// RequestID - позиция строки в листе заявок (нумерация с 1)
type RequestID int

type Status string

// Статусы заявок
const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusDenied   Status = "Denied"
)

// IsTerminal проверяет, что из статуса больше нет переходов
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusDenied
}

// ParseStatus принимает только известные статусы
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusPending, StatusApproved, StatusDenied:
		return Status(value), nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// Колонки листа заявок
const (
	ColSubmittedAt = iota
	ColRequesterName
	ColRequestedDate
	ColStatus
	ColComment
	ColPeriodLabel
	ColRequesterEmail

	RequestColumns
)

type LeaveRequest struct {
	ID             RequestID `json:"id"`
	SubmittedAt    time.Time `json:"submitted_at"`
	RequesterName  string    `json:"requester_name"`
	RequesterEmail string    `json:"requester_email"`
	RequestedDate  time.Time `json:"requested_date"` // нулевая, если ячейку не удалось разобрать
	RawDate        string    `json:"-"`
	Status         Status    `json:"status"`
	Comment        string    `json:"comment,omitempty"`
	PeriodLabel    string    `json:"period_label"`
}

// HasValidDate проверяет, что дата в строке разобрана
func (r *LeaveRequest) HasValidDate() bool {
	return !r.RequestedDate.IsZero()
}

func (r *LeaveRequest) IsPending() bool {
	return r.Status == StatusPending
}

// PeriodLabelFor возвращает учебный год, которому принадлежит дата.
// Год начинается 1 сентября: 2024-09-01 -> "2024-2025", 2024-06-20 -> "2023-2024".
func PeriodLabelFor(date time.Time) string {
	year := date.Year()
	if date.Month() >= time.September {
		return fmt.Sprintf("%d-%d", year, year+1)
	}
	return fmt.Sprintf("%d-%d", year-1, year)
}
