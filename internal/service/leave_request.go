package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"personal-days-bot/internal/models"
	"personal-days-bot/internal/repository"
	"personal-days-bot/pkg/dates"

	"github.com/sirupsen/logrus"
)

// Identity - подтвержденный пользователь, от имени которого идет операция
type Identity struct {
	Email string
	Name  string
}

// QuotaUsage - сколько дней уже одобрено в текущем учебном году
type QuotaUsage struct {
	Period       string
	WeekdaysUsed int
	WeekdayQuota int
	SpecialUsed  int
	SpecialQuota int
	Pending      int
}

type LeaveRequestService struct {
	repo       repository.LeaveRequestRepository
	exceptions repository.ExceptionRepository
	engine     *RuleEngine
	calendar   Calendar
	notifier   Notifier
	directory  Directory
	dispatcher Dispatcher
	loc        *time.Location
	now        func() time.Time
	logger     *logrus.Logger

	// Запись в реестр идет строго по одной операции
	mu sync.Mutex
}

func NewLeaveRequestService(
	repo repository.LeaveRequestRepository,
	exceptions repository.ExceptionRepository,
	engine *RuleEngine,
	calendar Calendar,
	notifier Notifier,
	dispatcher Dispatcher,
	loc *time.Location,
) *LeaveRequestService {
	return &LeaveRequestService{
		repo:       repo,
		exceptions: exceptions,
		engine:     engine,
		calendar:   calendar,
		notifier:   notifier,
		dispatcher: dispatcher,
		loc:        loc,
		now:        time.Now,
		logger:     newLogger(),
	}
}

func (s *LeaveRequestService) WithClock(now func() time.Time) *LeaveRequestService {
	s.now = now
	return s
}

func (s *LeaveRequestService) WithLogger(logger *logrus.Logger) *LeaveRequestService {
	s.logger = logger
	return s
}

func (s *LeaveRequestService) WithDirectory(directory Directory) *LeaveRequestService {
	s.directory = directory
	return s
}

// Submit проверяет заявку и добавляет ее в реестр со статусом Pending
func (s *LeaveRequestService) Submit(ctx context.Context, who Identity, date time.Time, comment string) (models.RequestID, error) {
	email := strings.TrimSpace(who.Email)
	if email == "" {
		return 0, newError(StateError, CodeMissingParameter, "requester email is required")
	}
	if date.IsZero() {
		return 0, newError(StateError, CodeMissingParameter, "requested date is required")
	}

	comment = strings.TrimSpace(comment)
	day := dates.Day(date, s.loc)
	period := models.PeriodLabelFor(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load requests")
		return 0, fmt.Errorf("load requests: %w", err)
	}

	exceptions, err := s.exceptions.GetAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load exceptions")
		return 0, fmt.Errorf("load exceptions: %w", err)
	}

	now := s.now()
	result := s.engine.Evaluate(Candidate{
		Date:           day,
		RequesterEmail: email,
		PeriodLabel:    period,
		Existing:       existing,
		Exceptions:     exceptions,
		CommentLength:  utf8.RuneCountInString(comment),
	}, now)

	if !result.Accepted {
		s.logger.WithFields(logrus.Fields{
			"email": email,
			"date":  dates.Key(day, s.loc),
			"rule":  result.Rejection.Rule,
		}).Info("Request rejected")
		return 0, result.Err()
	}

	name := strings.TrimSpace(who.Name)
	if name == "" {
		name = ResolveName(ctx, s.directory, email)
	}

	req := &models.LeaveRequest{
		SubmittedAt:    now,
		RequesterName:  name,
		RequesterEmail: email,
		RequestedDate:  day,
		Status:         models.StatusPending,
		Comment:        comment,
		PeriodLabel:    period,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.logger.WithError(err).Error("Failed to append request")
		return 0, fmt.Errorf("save request: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"email":      email,
		"date":       dates.Key(day, s.loc),
		"period":     period,
	}).Info("Request submitted")

	return req.ID, nil
}

// ListPending - заявки в ожидании: по дате, затем по времени подачи
func (s *LeaveRequestService) ListPending(ctx context.Context) ([]models.LeaveRequest, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	pending := make([]models.LeaveRequest, 0, len(all))
	for _, req := range all {
		if req.IsPending() {
			pending = append(pending, req)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if !a.RequestedDate.Equal(b.RequestedDate) {
			return a.RequestedDate.Before(b.RequestedDate)
		}
		return a.SubmittedAt.Before(b.SubmittedAt)
	})

	return pending, nil
}

// ListMine - все заявки пользователя, новые сверху
func (s *LeaveRequestService) ListMine(ctx context.Context, email string) ([]models.LeaveRequest, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, newError(StateError, CodeMissingParameter, "requester email is required")
	}

	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	var mine []models.LeaveRequest
	for _, req := range all {
		if strings.EqualFold(req.RequesterEmail, email) {
			mine = append(mine, req)
		}
	}

	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].SubmittedAt.After(mine[j].SubmittedAt)
	})

	return mine, nil
}

// Usage считает использованные дни пользователя в текущем учебном году
func (s *LeaveRequestService) Usage(ctx context.Context, email string) (QuotaUsage, error) {
	limits := s.engine.Limits()
	usage := QuotaUsage{
		Period:       models.PeriodLabelFor(dates.Day(s.now(), s.loc)),
		WeekdayQuota: limits.WeekdayQuota,
		SpecialQuota: limits.SpecialQuota,
	}

	mine, err := s.ListMine(ctx, email)
	if err != nil {
		return usage, err
	}

	for _, req := range mine {
		if req.PeriodLabel != usage.Period {
			continue
		}
		switch {
		case req.Status == models.StatusPending:
			usage.Pending++
		case req.Status == models.StatusApproved && req.HasValidDate() && dates.IsWeekend(req.RequestedDate):
			usage.SpecialUsed++
		case req.Status == models.StatusApproved:
			usage.WeekdaysUsed++
		}
	}

	return usage, nil
}

// Transition переводит заявку из Pending в Approved или Denied.
// Календарь и уведомление ставятся в очередь после записи статуса.
func (s *LeaveRequestService) Transition(ctx context.Context, id models.RequestID, status models.Status) error {
	if !status.IsTerminal() {
		return newError(StateError, CodeInvalidStatus,
			fmt.Sprintf("status must be %s or %s", models.StatusApproved, models.StatusDenied))
	}

	req, err := s.updateStatus(ctx, id, status)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": id,
		"email":      req.RequesterEmail,
		"status":     status,
	}).Info("Request status updated")

	s.dispatchOutcome(*req)
	return nil
}

func (s *LeaveRequestService) updateStatus(ctx context.Context, id models.RequestID, status models.Status) (*models.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request %d: %w", id, err)
	}
	if req == nil {
		return nil, newError(StateError, CodeNotFound, fmt.Sprintf("request %d not found", id))
	}
	if !req.IsPending() {
		return nil, newError(StateError, CodeNotPending,
			fmt.Sprintf("request %d is already %s", id, req.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		s.logger.WithError(err).WithField("request_id", id).Error("Failed to update status")
		return nil, fmt.Errorf("update request %d: %w", id, err)
	}

	req.Status = status
	return req, nil
}

func (s *LeaveRequestService) dispatchOutcome(req models.LeaveRequest) {
	fields := logrus.Fields{
		"request_id": req.ID,
		"status":     req.Status,
	}

	if s.calendar != nil {
		s.dispatcher.Dispatch(Task{
			Name:   "calendar_event",
			Fields: fields,
			Run: func(ctx context.Context) error {
				return s.createCalendarEvent(ctx, req)
			},
		})
	}

	if s.notifier != nil {
		s.dispatcher.Dispatch(Task{
			Name:   "requester_notification",
			Fields: fields,
			Run: func(ctx context.Context) error {
				return s.notifyRequester(ctx, req)
			},
		})
	}
}

func (s *LeaveRequestService) createCalendarEvent(ctx context.Context, req models.LeaveRequest) error {
	if !req.HasValidDate() {
		return newError(IntegrityError, CodeMalformedDate,
			fmt.Sprintf("request %d has unreadable date %q", req.ID, req.RawDate))
	}

	title, description, color := calendarEventFor(req)
	if err := s.calendar.CreateAllDayEvent(ctx, req.RequestedDate, title, description, color); err != nil {
		return wrapError(DownstreamError, CodeCalendarFailed, "calendar event not created", err)
	}
	return nil
}

func (s *LeaveRequestService) notifyRequester(ctx context.Context, req models.LeaveRequest) error {
	day := req.RawDate
	if req.HasValidDate() {
		day = dates.Format(req.RequestedDate, s.loc)
	}

	subject, body := outcomeMessage(req, day)
	if err := s.notifier.Send(ctx, req.RequesterEmail, subject, body); err != nil {
		return wrapError(DownstreamError, CodeNotifyFailed, "notification not sent", err)
	}
	return nil
}

func calendarEventFor(req models.LeaveRequest) (string, string, string) {
	if req.Status == models.StatusApproved {
		return "✅ Personal day approved: " + req.RequesterName,
			"Personal day request APPROVED",
			ColorGreen
	}
	return "❌ Personal day denied: " + req.RequesterName,
		"Personal day request DENIED",
		ColorRed
}

func outcomeMessage(req models.LeaveRequest, day string) (string, string) {
	subject := fmt.Sprintf("Personal day request: %s", req.Status)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", req.RequesterName)
	fmt.Fprintf(&b, "Your request for %s has been %s.\n\n", day, strings.ToLower(string(req.Status)))

	if req.Status == models.StatusApproved {
		b.WriteString("You can consider it confirmed in your calendar.\n\nThanks!")
	} else {
		b.WriteString("If you have any questions, please contact the school management.\n\nRegards.")
	}

	return subject, b.String()
}
