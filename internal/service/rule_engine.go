package service

import (
	"fmt"
	"strings"
	"time"

	"personal-days-bot/internal/models"
	"personal-days-bot/pkg/dates"
)

type RuleCode string

// Правила проверяются в этом порядке
const (
	RuleNotPast        RuleCode = "not_past"
	RuleMinLeadTime    RuleCode = "min_lead_time"
	RuleMaxLeadTime    RuleCode = "max_lead_time"
	RuleNoWeekend      RuleCode = "no_weekend"
	RuleNoDuplicate    RuleCode = "no_duplicate"
	RuleWeekdayQuota   RuleCode = "weekday_quota"
	RuleSpecialQuota   RuleCode = "special_quota"
	RuleNotExcepted    RuleCode = "excepted_date"
	RuleCommentTooLong RuleCode = "comment_too_long"
)

const defaultExceptReason = "restricted date."

type RuleLimits struct {
	MinLeadDays      int
	MaxLeadMonths    int
	WeekdayQuota     int
	SpecialQuota     int
	MaxCommentLength int
}

func DefaultRuleLimits() RuleLimits {
	return RuleLimits{
		MinLeadDays:      15,
		MaxLeadMonths:    3,
		WeekdayQuota:     3,
		SpecialQuota:     1,
		MaxCommentLength: 200,
	}
}

// Candidate - все, что нужно для проверки одной заявки
type Candidate struct {
	Date           time.Time
	RequesterEmail string
	PeriodLabel    string
	Existing       []models.LeaveRequest
	Exceptions     []models.Exception
	CommentLength  int
}

type Rejection struct {
	Rule   RuleCode
	Reason string
}

type Result struct {
	Accepted  bool
	Rejection *Rejection
}

// Err превращает отказ в ValidationError, для принятой заявки возвращает nil
func (r Result) Err() error {
	if r.Accepted || r.Rejection == nil {
		return nil
	}
	return newError(ValidationError, string(r.Rejection.Rule), r.Rejection.Reason)
}

// RuleEngine проверяет заявку без обращения к хранилищу
type RuleEngine struct {
	limits RuleLimits
	loc    *time.Location
}

func NewRuleEngine(limits RuleLimits, loc *time.Location) *RuleEngine {
	return &RuleEngine{limits: limits, loc: loc}
}

func (e *RuleEngine) Limits() RuleLimits {
	return e.limits
}

type rule func(date, today time.Time, c *Candidate) *Rejection

// Evaluate прогоняет правила по порядку до первого отказа
func (e *RuleEngine) Evaluate(c Candidate, today time.Time) Result {
	date := dates.Day(c.Date, e.loc)
	today = dates.Day(today, e.loc)

	rules := []rule{
		e.notPast,
		e.minLeadTime,
		e.maxLeadTime,
		e.noWeekend,
		e.noDuplicate,
		e.quotaLimit,
		e.notExcepted,
		e.commentLength,
	}

	for _, check := range rules {
		if rejection := check(date, today, &c); rejection != nil {
			return Result{Rejection: rejection}
		}
	}

	return Result{Accepted: true}
}

func (e *RuleEngine) notPast(date, today time.Time, _ *Candidate) *Rejection {
	if date.Before(today) {
		return &Rejection{Rule: RuleNotPast, Reason: "date in the past."}
	}
	return nil
}

func (e *RuleEngine) minLeadTime(date, today time.Time, _ *Candidate) *Rejection {
	if dates.DaysBetween(today, date) < e.limits.MinLeadDays {
		return &Rejection{Rule: RuleMinLeadTime, Reason: "insufficient lead time."}
	}
	return nil
}

func (e *RuleEngine) maxLeadTime(date, today time.Time, _ *Candidate) *Rejection {
	if date.After(today.AddDate(0, e.limits.MaxLeadMonths, 0)) {
		return &Rejection{Rule: RuleMaxLeadTime, Reason: "too far in advance."}
	}
	return nil
}

func (e *RuleEngine) noWeekend(date, _ time.Time, _ *Candidate) *Rejection {
	if dates.IsWeekend(date) {
		return &Rejection{Rule: RuleNoWeekend, Reason: "weekend date."}
	}
	return nil
}

func (e *RuleEngine) noDuplicate(date, _ time.Time, c *Candidate) *Rejection {
	key := dates.Key(date, e.loc)
	for i := range c.Existing {
		req := &c.Existing[i]
		if !e.samePerson(req, c) || !req.HasValidDate() {
			continue
		}
		if dates.Key(req.RequestedDate, e.loc) == key {
			return &Rejection{Rule: RuleNoDuplicate, Reason: "duplicate request for that date."}
		}
	}
	return nil
}

// quotaLimit считает только одобренные заявки. Выходные уже отсекаются
// правилом no_weekend, но в старых данных они встречаются.
func (e *RuleEngine) quotaLimit(_, _ time.Time, c *Candidate) *Rejection {
	weekdays, weekends := 0, 0
	for i := range c.Existing {
		req := &c.Existing[i]
		if !e.samePerson(req, c) || !req.HasValidDate() {
			continue
		}
		if req.Status == models.StatusPending || req.Status == models.StatusDenied {
			continue
		}
		if dates.IsWeekend(req.RequestedDate.In(e.loc)) {
			weekends++
		} else {
			weekdays++
		}
	}

	if weekdays >= e.limits.WeekdayQuota {
		reason := fmt.Sprintf("quota exhausted: all %d weekday personal days for %s are already approved.",
			e.limits.WeekdayQuota, c.PeriodLabel)
		return &Rejection{Rule: RuleWeekdayQuota, Reason: reason}
	}
	if weekends >= e.limits.SpecialQuota {
		reason := fmt.Sprintf("quota exhausted: the non-school day allowance for %s is already used.", c.PeriodLabel)
		return &Rejection{Rule: RuleSpecialQuota, Reason: reason}
	}
	return nil
}

func (e *RuleEngine) notExcepted(date, _ time.Time, c *Candidate) *Rejection {
	key := dates.Key(date, e.loc)
	for _, ex := range c.Exceptions {
		if ex.Date.IsZero() || dates.Key(ex.Date, e.loc) != key {
			continue
		}
		reason := strings.TrimSpace(ex.Reason)
		if reason == "" {
			reason = defaultExceptReason
		}
		return &Rejection{Rule: RuleNotExcepted, Reason: reason}
	}
	return nil
}

func (e *RuleEngine) commentLength(_, _ time.Time, c *Candidate) *Rejection {
	if c.CommentLength > e.limits.MaxCommentLength {
		return &Rejection{Rule: RuleCommentTooLong, Reason: "comment too long."}
	}
	return nil
}

func (e *RuleEngine) samePerson(req *models.LeaveRequest, c *Candidate) bool {
	return strings.EqualFold(req.RequesterEmail, c.RequesterEmail) && req.PeriodLabel == c.PeriodLabel
}
