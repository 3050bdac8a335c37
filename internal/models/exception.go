package models

import (
	"time"
)

// Exception - дата, на которую заявки не принимаются
type Exception struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// Колонки листа исключений
const (
	ColExceptionDate = iota
	ColExceptionReason
)

// AdminRecipient - адрес администратора (лист admins, одна колонка)
type AdminRecipient struct {
	Email string `json:"email"`
}
