package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"personal-days-bot/internal/models"
	"personal-days-bot/internal/repository"

	"github.com/sirupsen/logrus"
)

var ledgerNow = time.Date(2024, time.June, 1, 10, 0, 0, 0, testLoc)

const anaEmail = "ana.lopez@school.org"

// ── Submit ──

func TestLeaveRequestService_Submit_Scenarios(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()
	who := Identity{Email: anaEmail}

	id, err := env.service.Submit(ctx, who, day(2024, time.June, 20), "family event")
	if err != nil {
		t.Fatalf("ожидали принятие: %v", err)
	}
	if id != 1 {
		t.Errorf("первая заявка должна получить id 1, получили %d", id)
	}

	req, err := env.requests.GetByID(ctx, id)
	if err != nil || req == nil {
		t.Fatalf("заявка не найдена: %v", err)
	}
	if req.Status != models.StatusPending {
		t.Errorf("статус: ожидали Pending, получили %s", req.Status)
	}
	if req.RequesterName != "Ana Lopez" {
		t.Errorf("имя из адреса: ожидали %q, получили %q", "Ana Lopez", req.RequesterName)
	}
	if req.PeriodLabel != "2023-2024" {
		t.Errorf("учебный год: получили %q", req.PeriodLabel)
	}
	if !req.SubmittedAt.Equal(ledgerNow) {
		t.Errorf("время подачи: ожидали %v, получили %v", ledgerNow, req.SubmittedAt)
	}

	rejected := []struct {
		date   time.Time
		reason string
	}{
		{day(2024, time.June, 10), "insufficient lead time."},
		{day(2024, time.June, 22), "weekend date."},
		{day(2024, time.September, 15), "too far in advance."},
	}
	for _, tt := range rejected {
		_, err := env.service.Submit(ctx, who, tt.date, "")
		if !IsKind(err, ValidationError) {
			t.Fatalf("%s: ожидали ValidationError, получили %v", tt.date.Format("2006-01-02"), err)
		}
		if err.Error() != tt.reason {
			t.Errorf("%s: ожидали %q, получили %q", tt.date.Format("2006-01-02"), tt.reason, err.Error())
		}
	}

	all, _ := env.requests.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("отказы не должны писать в реестр, строк: %d", len(all))
	}
}

func TestLeaveRequestService_Submit_Exception(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	if err := env.exceptions.Create(ctx, &models.Exception{Date: day(2024, time.June, 20), Reason: "INSET day"}); err != nil {
		t.Fatalf("create exception: %v", err)
	}

	_, err := env.service.Submit(ctx, Identity{Email: anaEmail}, day(2024, time.June, 20), "")
	if CodeOf(err) != string(RuleNotExcepted) {
		t.Fatalf("ожидали %s, получили %v", RuleNotExcepted, err)
	}
	if err.Error() != "INSET day" {
		t.Errorf("ожидали причину %q, получили %q", "INSET day", err.Error())
	}
}

func TestLeaveRequestService_Submit_DuplicateLaw(t *testing.T) {
	comments := []struct{ first, second string }{
		{"", ""},
		{"doctor", "doctor"},
		{"doctor", "completely different"},
	}

	for _, c := range comments {
		env := newLedgerEnv(t, ledgerNow)
		ctx := context.Background()
		who := Identity{Email: anaEmail}

		if _, err := env.service.Submit(ctx, who, day(2024, time.June, 20), c.first); err != nil {
			t.Fatalf("первая заявка: %v", err)
		}
		_, err := env.service.Submit(ctx, who, day(2024, time.June, 20), c.second)
		if CodeOf(err) != string(RuleNoDuplicate) {
			t.Errorf("комментарии %q/%q: ожидали %s, получили %v", c.first, c.second, RuleNoDuplicate, err)
		}
	}
}

func TestLeaveRequestService_Submit_QuotaLaw(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	for _, d := range []time.Time{day(2024, time.February, 5), day(2024, time.March, 5), day(2024, time.April, 5)} {
		env.seed(t, models.LeaveRequest{
			SubmittedAt:    d.AddDate(0, 0, -20),
			RequesterName:  "Ana Lopez",
			RequesterEmail: anaEmail,
			RequestedDate:  d,
			Status:         models.StatusApproved,
		})
	}

	_, err := env.service.Submit(ctx, Identity{Email: anaEmail}, day(2024, time.June, 20), "")
	if CodeOf(err) != string(RuleWeekdayQuota) {
		t.Fatalf("ожидали %s, получили %v", RuleWeekdayQuota, err)
	}

	// Другой сотрудник не затронут
	if _, err := env.service.Submit(ctx, Identity{Email: "luis.perez@school.org"}, day(2024, time.June, 20), ""); err != nil {
		t.Errorf("квота другого сотрудника: %v", err)
	}
}

func TestLeaveRequestService_Submit_MissingParameters(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	_, err := env.service.Submit(ctx, Identity{Email: "  "}, day(2024, time.June, 20), "")
	if !IsKind(err, StateError) || CodeOf(err) != CodeMissingParameter {
		t.Errorf("пустой адрес: ожидали StateError/%s, получили %v", CodeMissingParameter, err)
	}

	_, err = env.service.Submit(ctx, Identity{Email: anaEmail}, time.Time{}, "")
	if !IsKind(err, StateError) || CodeOf(err) != CodeMissingParameter {
		t.Errorf("пустая дата: ожидали StateError/%s, получили %v", CodeMissingParameter, err)
	}
}

func TestLeaveRequestService_Submit_NameResolution(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()
	env.service.WithDirectory(mockDirectory{anaEmail: "Ana María López"})

	id, err := env.service.Submit(ctx, Identity{Email: anaEmail}, day(2024, time.June, 20), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	req, _ := env.requests.GetByID(ctx, id)
	if req.RequesterName != "Ana María López" {
		t.Errorf("ожидали имя из справочника, получили %q", req.RequesterName)
	}

	// Явно переданное имя важнее справочника
	id, err = env.service.Submit(ctx, Identity{Email: anaEmail, Name: "Ana L."}, day(2024, time.June, 21), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	req, _ = env.requests.GetByID(ctx, id)
	if req.RequesterName != "Ana L." {
		t.Errorf("ожидали переданное имя, получили %q", req.RequesterName)
	}
}

func TestLeaveRequestService_Submit_StoreError(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	storeErr := errors.New("store unavailable")

	svc := NewLeaveRequestService(
		&failingRequestRepo{err: storeErr},
		env.exceptions,
		NewRuleEngine(DefaultRuleLimits(), testLoc),
		nil, nil,
		&InlineDispatcher{},
		testLoc,
	).WithClock(fixedClock(ledgerNow)).WithLogger(logrus.New())

	_, err := svc.Submit(context.Background(), Identity{Email: anaEmail}, day(2024, time.June, 20), "")
	if !errors.Is(err, storeErr) {
		t.Fatalf("ожидали ошибку хранилища, получили %v", err)
	}
	if KindOf(err) != "" {
		t.Errorf("ошибка хранилища не относится к видам домена, получили %s", KindOf(err))
	}
}

func TestLeaveRequestService_Submit_ConcurrentDuplicates(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		duplicate int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.Submit(ctx, Identity{Email: anaEmail}, day(2024, time.June, 20), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case CodeOf(err) == string(RuleNoDuplicate):
				duplicate++
			default:
				t.Errorf("неожиданная ошибка: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 || duplicate != 9 {
		t.Errorf("ожидали 1 принятую и 9 дубликатов, получили %d и %d", accepted, duplicate)
	}
}

// ── ListPending / ListMine ──

func TestLeaveRequestService_ListPending_Order(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	env.seed(t, models.LeaveRequest{ // 1
		SubmittedAt: time.Date(2024, time.May, 3, 9, 0, 0, 0, testLoc), RequesterEmail: "a@school.org",
		RequestedDate: day(2024, time.July, 1), Status: models.StatusPending,
	})
	env.seed(t, models.LeaveRequest{ // 2
		SubmittedAt: time.Date(2024, time.May, 2, 9, 0, 0, 0, testLoc), RequesterEmail: "b@school.org",
		RequestedDate: day(2024, time.June, 20), Status: models.StatusPending,
	})
	env.seed(t, models.LeaveRequest{ // 3
		SubmittedAt: time.Date(2024, time.May, 1, 9, 0, 0, 0, testLoc), RequesterEmail: "c@school.org",
		RequestedDate: day(2024, time.June, 20), Status: models.StatusPending,
	})
	env.seed(t, models.LeaveRequest{ // 4
		SubmittedAt: time.Date(2024, time.April, 1, 9, 0, 0, 0, testLoc), RequesterEmail: "d@school.org",
		RequestedDate: day(2024, time.June, 3), Status: models.StatusApproved,
	})

	first, err := env.service.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}

	var ids []models.RequestID
	for _, req := range first {
		ids = append(ids, req.ID)
	}
	if want := []models.RequestID{3, 2, 1}; !reflect.DeepEqual(ids, want) {
		t.Errorf("порядок: ожидали %v, получили %v", want, ids)
	}

	second, err := env.service.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("повторный вызов без записи должен вернуть то же самое")
	}
}

func TestLeaveRequestService_ListMine(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	env.seed(t, models.LeaveRequest{
		SubmittedAt: time.Date(2024, time.March, 1, 9, 0, 0, 0, testLoc), RequesterEmail: anaEmail,
		RequestedDate: day(2024, time.April, 2), Status: models.StatusApproved,
	})
	env.seed(t, models.LeaveRequest{
		SubmittedAt: time.Date(2024, time.May, 1, 9, 0, 0, 0, testLoc), RequesterEmail: "Ana.Lopez@School.org",
		RequestedDate: day(2024, time.June, 3), Status: models.StatusPending,
	})
	env.seed(t, models.LeaveRequest{
		SubmittedAt: time.Date(2024, time.May, 2, 9, 0, 0, 0, testLoc), RequesterEmail: "luis.perez@school.org",
		RequestedDate: day(2024, time.June, 4), Status: models.StatusPending,
	})

	mine, err := env.service.ListMine(ctx, anaEmail)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("ожидали 2 заявки, получили %d", len(mine))
	}
	if mine[0].ID != 2 || mine[1].ID != 1 {
		t.Errorf("ожидали новые сверху [2 1], получили [%d %d]", mine[0].ID, mine[1].ID)
	}

	if _, err := env.service.ListMine(ctx, ""); CodeOf(err) != CodeMissingParameter {
		t.Errorf("пустой адрес: ожидали %s, получили %v", CodeMissingParameter, err)
	}
}

func TestLeaveRequestService_Usage(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	seed := func(d time.Time, status models.Status) {
		env.seed(t, models.LeaveRequest{RequesterEmail: anaEmail, RequestedDate: d, Status: status})
	}
	seed(day(2024, time.February, 5), models.StatusApproved)
	seed(day(2024, time.March, 2), models.StatusApproved) // суббота
	seed(day(2024, time.June, 20), models.StatusPending)
	seed(day(2024, time.April, 5), models.StatusDenied)
	seed(day(2023, time.May, 5), models.StatusApproved) // прошлый год

	usage, err := env.service.Usage(ctx, anaEmail)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}

	want := QuotaUsage{
		Period:       "2023-2024",
		WeekdaysUsed: 1,
		WeekdayQuota: 3,
		SpecialUsed:  1,
		SpecialQuota: 1,
		Pending:      1,
	}
	if usage != want {
		t.Errorf("ожидали %+v, получили %+v", want, usage)
	}
}

// ── Transition ──

func TestLeaveRequestService_Transition_Law(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	id, err := env.service.Submit(ctx, Identity{Email: anaEmail}, day(2024, time.June, 20), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := env.service.Transition(ctx, id, models.StatusApproved); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	req, _ := env.requests.GetByID(ctx, id)
	if req.Status != models.StatusApproved {
		t.Errorf("статус после перехода: %s", req.Status)
	}

	calls := env.calendar.Calls()
	if len(calls) != 1 {
		t.Fatalf("ожидали одно событие календаря, получили %d", len(calls))
	}
	if !calls[0].Date.Equal(day(2024, time.June, 20)) {
		t.Errorf("дата события: %v", calls[0].Date)
	}
	if calls[0].Color != ColorGreen || !strings.Contains(calls[0].Title, "approved") || !strings.Contains(calls[0].Title, "Ana Lopez") {
		t.Errorf("событие: %+v", calls[0])
	}

	sent := env.notifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("ожидали одно уведомление, получили %d", len(sent))
	}
	if sent[0].To[0] != anaEmail || sent[0].Subject != "Personal day request: Approved" {
		t.Errorf("уведомление: %+v", sent[0])
	}
	if !strings.Contains(sent[0].Body, "20/06/2024") || !strings.Contains(sent[0].Body, "approved") {
		t.Errorf("текст уведомления: %q", sent[0].Body)
	}
}

func TestLeaveRequestService_Transition_Denied(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	id := env.seed(t, models.LeaveRequest{RequesterName: "Luis Perez", RequesterEmail: "luis.perez@school.org",
		RequestedDate: day(2024, time.June, 20), Status: models.StatusPending})

	if err := env.service.Transition(ctx, id, models.StatusDenied); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	calls := env.calendar.Calls()
	if len(calls) != 1 || calls[0].Color != ColorRed || !strings.Contains(calls[0].Title, "denied") {
		t.Errorf("событие отказа: %+v", calls)
	}
	sent := env.notifier.Sent()
	if len(sent) != 1 || sent[0].Subject != "Personal day request: Denied" {
		t.Errorf("уведомление отказа: %+v", sent)
	}
}

func TestLeaveRequestService_Transition_Rejections(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	id := env.seed(t, models.LeaveRequest{RequesterEmail: anaEmail, RequestedDate: day(2024, time.June, 20), Status: models.StatusPending})

	err := env.service.Transition(ctx, id, models.StatusPending)
	if !IsKind(err, StateError) || CodeOf(err) != CodeInvalidStatus {
		t.Errorf("Pending как цель: ожидали %s, получили %v", CodeInvalidStatus, err)
	}

	err = env.service.Transition(ctx, 42, models.StatusApproved)
	if !IsKind(err, StateError) || CodeOf(err) != CodeNotFound {
		t.Errorf("нет строки: ожидали %s, получили %v", CodeNotFound, err)
	}

	if err := env.service.Transition(ctx, id, models.StatusApproved); err != nil {
		t.Fatalf("первый переход: %v", err)
	}
	err = env.service.Transition(ctx, id, models.StatusDenied)
	if !IsKind(err, StateError) || CodeOf(err) != CodeNotPending {
		t.Errorf("повторный переход: ожидали %s, получили %v", CodeNotPending, err)
	}

	req, _ := env.requests.GetByID(ctx, id)
	if req.Status != models.StatusApproved {
		t.Errorf("статус не должен меняться после отказа, получили %s", req.Status)
	}
	if n := len(env.calendar.Calls()); n != 1 {
		t.Errorf("побочные действия только для успешного перехода, событий: %d", n)
	}
}

func TestLeaveRequestService_Transition_DownstreamFailureKeepsStatus(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()
	env.calendar.err = errors.New("calendar down")
	env.notifier.err = errors.New("smtp down")

	id := env.seed(t, models.LeaveRequest{RequesterEmail: anaEmail, RequestedDate: day(2024, time.June, 20), Status: models.StatusPending})

	if err := env.service.Transition(ctx, id, models.StatusApproved); err != nil {
		t.Fatalf("сбой календаря не должен возвращаться вызывающему: %v", err)
	}

	req, _ := env.requests.GetByID(ctx, id)
	if req.Status != models.StatusApproved {
		t.Errorf("статус должен сохраниться, получили %s", req.Status)
	}

	codes := map[string]bool{}
	for _, entry := range env.hook.AllEntries() {
		if entry.Message == "Side effect failed" {
			if entry.Data["kind"] != DownstreamError {
				t.Errorf("ожидали вид downstream, получили %v", entry.Data["kind"])
			}
			codes[entry.Data["code"].(string)] = true
		}
	}
	if !codes[CodeCalendarFailed] || !codes[CodeNotifyFailed] {
		t.Errorf("ожидали записи в лог для календаря и уведомления, получили %v", codes)
	}
}

func TestLeaveRequestService_Transition_MalformedDate(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()

	row := make(repository.Row, models.RequestColumns)
	row[models.ColSubmittedAt] = "2024-05-01T10:00:00Z"
	row[models.ColRequesterName] = "Ana Lopez"
	row[models.ColRequestedDate] = "31/02/2024 ??"
	row[models.ColStatus] = string(models.StatusPending)
	row[models.ColPeriodLabel] = "2023-2024"
	row[models.ColRequesterEmail] = anaEmail
	if _, err := env.store.Append(ctx, repository.SheetRequests, row); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := env.service.Transition(ctx, 1, models.StatusDenied); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	req, _ := env.requests.GetByID(ctx, 1)
	if req.Status != models.StatusDenied {
		t.Errorf("статус: %s", req.Status)
	}
	if n := len(env.calendar.Calls()); n != 0 {
		t.Errorf("с битой датой событие не создается, вызовов: %d", n)
	}
	if n := len(env.notifier.Sent()); n != 1 {
		t.Errorf("уведомление все равно отправляется, получили %d", n)
	}

	found := false
	for _, entry := range env.hook.AllEntries() {
		if entry.Data["code"] == CodeMalformedDate && entry.Data["kind"] == IntegrityError {
			found = true
		}
	}
	if !found {
		t.Errorf("ожидали запись в лог об IntegrityError")
	}
}

func TestLeaveRequestService_Transition_QueueDispatcher(t *testing.T) {
	env := newLedgerEnv(t, ledgerNow)
	ctx := context.Background()
	logger, _ := nullLogger()

	queue := NewQueueDispatcher(4, logger)
	env.service.dispatcher = queue

	id := env.seed(t, models.LeaveRequest{RequesterEmail: anaEmail, RequestedDate: day(2024, time.June, 20), Status: models.StatusPending})
	if err := env.service.Transition(ctx, id, models.StatusApproved); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	queue.Close()

	if len(env.calendar.Calls()) != 1 || len(env.notifier.Sent()) != 1 {
		t.Errorf("после Close все задачи должны быть выполнены: календарь %d, уведомления %d",
			len(env.calendar.Calls()), len(env.notifier.Sent()))
	}
}
