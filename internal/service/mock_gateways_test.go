package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"personal-days-bot/internal/models"
	"personal-days-bot/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// ── Mock Calendar ──

type calendarCall struct {
	Date        time.Time
	Title       string
	Description string
	Color       string
}

type mockCalendar struct {
	mu    sync.Mutex
	calls []calendarCall
	err   error
}

func (m *mockCalendar) CreateAllDayEvent(_ context.Context, date time.Time, title, description, color string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, calendarCall{Date: date, Title: title, Description: description, Color: color})
	return m.err
}

func (m *mockCalendar) Calls() []calendarCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]calendarCall(nil), m.calls...)
}

// ── Mock Notifier ──

type sentMessage struct {
	To      []string
	Subject string
	Body    string
	Digest  bool
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockNotifier) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{To: []string{to}, Subject: subject, Body: body})
	return m.err
}

func (m *mockNotifier) SendDigest(_ context.Context, recipients []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{
		To:      append([]string(nil), recipients...),
		Subject: subject,
		Body:    body,
		Digest:  true,
	})
	return m.err
}

func (m *mockNotifier) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// ── Mock Directory ──

type mockDirectory map[string]string

func (d mockDirectory) LookupName(_ context.Context, email string) (string, error) {
	if name, ok := d[email]; ok {
		return name, nil
	}
	return "", errors.New("not found")
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[int64]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*models.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.ChatID == user.ChatID || u.Email == user.Email {
			return repository.ErrUserExists
		}
	}
	user.ID = uint(len(m.users) + 1)
	m.users[user.ChatID] = user
	return nil
}

func (m *mockUserRepo) GetByChatID(_ context.Context, chatID int64) (*models.User, error) {
	return m.users[chatID], nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	m.users[user.ChatID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, chatID int64) error {
	if _, ok := m.users[chatID]; !ok {
		return errors.New("user not found")
	}
	delete(m.users, chatID)
	return nil
}

// ── Mock LeaveRequestRepository с ошибкой чтения ──

type failingRequestRepo struct {
	repository.LeaveRequestRepository
	err error
}

func (f *failingRequestRepo) GetAll(context.Context) ([]models.LeaveRequest, error) {
	return nil, f.err
}

// ── Тестовое окружение ──

var testLoc = time.UTC

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, testLoc)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func nullLogger() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}

type ledgerEnv struct {
	store      *repository.MemoryTabularStore
	requests   *repository.SheetLeaveRequestRepository
	exceptions *repository.SheetExceptionRepository
	admins     *repository.SheetAdminRecipientRepository
	calendar   *mockCalendar
	notifier   *mockNotifier
	hook       *test.Hook
	service    *LeaveRequestService
}

// newLedgerEnv собирает реестр на памяти; побочные действия выполняются сразу
func newLedgerEnv(t *testing.T, now time.Time) *ledgerEnv {
	t.Helper()

	store := repository.NewMemoryTabularStore()
	logger, hook := nullLogger()

	env := &ledgerEnv{
		store:      store,
		requests:   repository.NewSheetLeaveRequestRepository(store, testLoc),
		exceptions: repository.NewSheetExceptionRepository(store, testLoc),
		admins:     repository.NewSheetAdminRecipientRepository(store),
		calendar:   &mockCalendar{},
		notifier:   &mockNotifier{},
		hook:       hook,
	}

	env.service = NewLeaveRequestService(
		env.requests,
		env.exceptions,
		NewRuleEngine(DefaultRuleLimits(), testLoc),
		env.calendar,
		env.notifier,
		&InlineDispatcher{Logger: logger},
		testLoc,
	).WithClock(fixedClock(now)).WithLogger(logger)

	return env
}

// seed кладет строку в реестр в обход правил
func (e *ledgerEnv) seed(t *testing.T, req models.LeaveRequest) models.RequestID {
	t.Helper()
	if req.PeriodLabel == "" && !req.RequestedDate.IsZero() {
		req.PeriodLabel = models.PeriodLabelFor(req.RequestedDate)
	}
	if err := e.requests.Create(context.Background(), &req); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return req.ID
}
