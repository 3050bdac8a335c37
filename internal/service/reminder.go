package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"personal-days-bot/internal/models"
	"personal-days-bot/internal/repository"
	"personal-days-bot/pkg/dates"

	"github.com/sirupsen/logrus"
)

const DefaultReminderHorizon = 15

// ExpiringRequest - заявка в ожидании, до даты которой осталось мало дней
type ExpiringRequest struct {
	RequestID      models.RequestID `json:"request_id"`
	RequesterName  string           `json:"requester_name"`
	RequesterEmail string           `json:"requester_email"`
	Date           time.Time        `json:"date"`
	Comment        string           `json:"comment,omitempty"`
	DaysRemaining  int              `json:"days_remaining"`
}

type ReminderService struct {
	repo     repository.LeaveRequestRepository
	admins   repository.AdminRecipientRepository
	notifier Notifier
	horizon  int
	loc      *time.Location
	now      func() time.Time
	logger   *logrus.Logger
}

func NewReminderService(
	repo repository.LeaveRequestRepository,
	admins repository.AdminRecipientRepository,
	notifier Notifier,
	horizon int,
	loc *time.Location,
) *ReminderService {
	if horizon <= 0 {
		horizon = DefaultReminderHorizon
	}

	return &ReminderService{
		repo:     repo,
		admins:   admins,
		notifier: notifier,
		horizon:  horizon,
		loc:      loc,
		now:      time.Now,
		logger:   newLogger(),
	}
}

func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	s.now = now
	return s
}

func (s *ReminderService) WithLogger(logger *logrus.Logger) *ReminderService {
	s.logger = logger
	return s
}

func (s *ReminderService) Horizon() int {
	return s.horizon
}

// FindExpiringSoon ищет заявки в ожидании с 0 <= дней до даты <= horizonDays.
// Дату разбирает репозиторий; строки, где она осталась нулевой, пропускаются.
func (s *ReminderService) FindExpiringSoon(ctx context.Context, horizonDays int) ([]ExpiringRequest, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	now := s.now()
	var expiring []ExpiringRequest
	for _, req := range all {
		if !req.IsPending() {
			continue
		}

		if !req.HasValidDate() {
			s.logger.WithFields(logrus.Fields{
				"request_id": req.ID,
				"value":      req.RawDate,
			}).Warn("Skipping request with unreadable date")
			continue
		}
		date := req.RequestedDate

		days := dates.CeilDays(now, date)
		if days < 0 || days > horizonDays {
			continue
		}

		expiring = append(expiring, ExpiringRequest{
			RequestID:      req.ID,
			RequesterName:  req.RequesterName,
			RequesterEmail: req.RequesterEmail,
			Date:           date,
			Comment:        req.Comment,
			DaysRemaining:  days,
		})
	}

	return expiring, nil
}

// NotifyExpiringSoon отправляет администраторам одну сводку.
// Если нет заявок или нет администраторов - ничего не делает.
func (s *ReminderService) NotifyExpiringSoon(ctx context.Context) (int, error) {
	expiring, err := s.FindExpiringSoon(ctx, s.horizon)
	if err != nil {
		return 0, err
	}
	if len(expiring) == 0 {
		s.logger.Debug("No pending requests close to their date")
		return 0, nil
	}

	admins, err := s.admins.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load admin recipients: %w", err)
	}
	if len(admins) == 0 {
		s.logger.Warn("No admin recipients configured, reminder skipped")
		return 0, nil
	}
	if s.notifier == nil {
		return 0, newError(DownstreamError, CodeNotifyFailed, "no notification channel configured")
	}

	recipients := make([]string, 0, len(admins))
	for _, admin := range admins {
		recipients = append(recipients, admin.Email)
	}

	subject, body := s.composeDigest(expiring)
	if err := s.notifier.SendDigest(ctx, recipients, subject, body); err != nil {
		s.logger.WithError(err).Error("Failed to send reminder digest")
		return 0, wrapError(DownstreamError, CodeNotifyFailed, "reminder digest not sent", err)
	}

	s.logger.WithFields(logrus.Fields{
		"requests":   len(expiring),
		"recipients": len(recipients),
	}).Info("Reminder digest sent")

	return len(expiring), nil
}

func (s *ReminderService) composeDigest(expiring []ExpiringRequest) (string, string) {
	subject := "📌 PERSONAL DAYS - pending requests close to their date"

	var b strings.Builder
	fmt.Fprintf(&b, "📌 PERSONAL DAYS - pending requests close to their date (less than %d days away)\n\n", s.horizon)
	b.WriteString("The following personal day requests are still pending and their dates are near:\n\n")

	for i, req := range expiring {
		fmt.Fprintf(&b, "%d. 🗓️ %s - %s (%s)\n", i+1, dates.Format(req.Date, s.loc), req.RequesterName, req.RequesterEmail)
		if req.Comment != "" {
			fmt.Fprintf(&b, "   📝 Comment: %s\n", req.Comment)
		}
	}

	b.WriteString("\nYou can review them from the usual management panel.")
	return subject, b.String()
}
