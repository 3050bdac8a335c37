package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"personal-days-bot/internal/repository"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Цвета событий календаря
const (
	ColorGreen = "green"
	ColorRed   = "red"
)

// Calendar создает событие на весь день: с date до date+1 (не включительно)
type Calendar interface {
	CreateAllDayEvent(ctx context.Context, date time.Time, title, description, color string) error
}

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
	SendDigest(ctx context.Context, recipients []string, subject, body string) error
}

// Directory ищет отображаемое имя по адресу
type Directory interface {
	LookupName(ctx context.Context, email string) (string, error)
}

// FanoutNotifier отправляет сообщение через все каналы сразу
type FanoutNotifier []Notifier

func (f FanoutNotifier) Send(ctx context.Context, to, subject, body string) error {
	var errs []error
	for _, n := range f {
		if err := n.Send(ctx, to, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f FanoutNotifier) SendDigest(ctx context.Context, recipients []string, subject, body string) error {
	var errs []error
	for _, n := range f {
		if err := n.SendDigest(ctx, recipients, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var errNameNotFound = errors.New("name not found in directory")

// UserDirectory берет имена из зарегистрированных пользователей бота
type UserDirectory struct {
	users repository.UserRepository
}

func NewUserDirectory(users repository.UserRepository) *UserDirectory {
	return &UserDirectory{users: users}
}

func (d *UserDirectory) LookupName(ctx context.Context, email string) (string, error) {
	user, err := d.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil || strings.TrimSpace(user.FullName()) == "" {
		return "", errNameNotFound
	}
	return user.FullName(), nil
}

// ResolveName спрашивает справочник, при неудаче строит имя из адреса
func ResolveName(ctx context.Context, dir Directory, email string) string {
	if dir != nil {
		if name, err := dir.LookupName(ctx, email); err == nil && name != "" {
			return name
		}
	}
	return DisplayNameFromEmail(email)
}

// DisplayNameFromEmail: "maria.garcia@school.org" -> "Maria Garcia"
func DisplayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	if local == "" {
		return "Unknown user"
	}

	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)
	return cases.Title(language.Und).String(strings.Join(strings.Fields(local), " "))
}
