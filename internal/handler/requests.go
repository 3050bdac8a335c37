package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"personal-days-bot/internal/models"
	"personal-days-bot/pkg/dates"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Префиксы callback данных для кнопок под заявками
const (
	actionApprove = "approve"
	actionDeny    = "deny"
)

func statusForAction(action string) models.Status {
	if action == actionApprove {
		return models.StatusApproved
	}
	return models.StatusDenied
}

// submitRequest: /request dd.mm.yyyy [комментарий]
func (h *Handler) submitRequest(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID

	who, err := h.userService.Identity(ctx, chatID)
	if err != nil {
		h.replyNotRegistered(chatID, err)
		return
	}

	fields := strings.Fields(args)
	if len(fields) == 0 {
		h.reply(chatID, `🗓️ Request a personal day

Usage:
/request dd.mm.yyyy [comment]

Example:
/request 20.06.2025 family event

💡 Requests need at least 15 days of notice and at most 3 months.`)
		return
	}

	date, err := dates.ParseInput(fields[0], h.loc)
	if err != nil {
		h.reply(chatID, "❌ Could not read the date. Use the dd.mm.yyyy format.")
		return
	}

	comment := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args), fields[0]))

	id, err := h.requestService.Submit(ctx, who, date, comment)
	if err != nil {
		h.replyError(chatID, "Request rejected", err)
		return
	}

	text := fmt.Sprintf(`✅ Request #%d submitted!

🗓️ Date: %s
⏳ Status: %s

You will be notified when it is reviewed.`, id, dates.Format(date, h.loc), models.StatusPending)
	if comment != "" {
		text += "\n📝 Comment: " + comment
	}

	h.reply(chatID, text)
}

func (h *Handler) showMyRequests(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	who, err := h.userService.Identity(ctx, chatID)
	if err != nil {
		h.replyNotRegistered(chatID, err)
		return
	}

	mine, err := h.requestService.ListMine(ctx, who.Email)
	if err != nil {
		h.replyError(chatID, "Could not load your requests", err)
		return
	}

	usage, err := h.requestService.Usage(ctx, who.Email)
	if err != nil {
		h.replyError(chatID, "Could not load your requests", err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 School year %s\n", usage.Period)
	fmt.Fprintf(&b, "✅ Weekdays approved: %d of %d\n", usage.WeekdaysUsed, usage.WeekdayQuota)
	fmt.Fprintf(&b, "🌟 Non-school days approved: %d of %d\n", usage.SpecialUsed, usage.SpecialQuota)
	fmt.Fprintf(&b, "⏳ Pending: %d\n\n", usage.Pending)

	if len(mine) == 0 {
		b.WriteString("You have no requests yet. Use /request to create one.")
	} else {
		b.WriteString("🗂️ Your requests:\n")
		for _, req := range mine {
			b.WriteString(h.formatRequestLine(req))
		}
	}

	h.reply(chatID, b.String())
}

func (h *Handler) showExceptions(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	upcoming, err := h.exceptionService.GetExceptions(ctx, h.now())
	if err != nil {
		h.replyError(chatID, "Could not load restricted dates", err)
		return
	}

	if len(upcoming) == 0 {
		h.reply(chatID, "📅 There are no restricted dates ahead.")
		return
	}

	var b strings.Builder
	b.WriteString("⛔ Restricted dates:\n\n")
	for _, ex := range upcoming {
		fmt.Fprintf(&b, "• %s", dates.Format(ex.Date, h.loc))
		if ex.Reason != "" {
			fmt.Fprintf(&b, " - %s", ex.Reason)
		}
		b.WriteString("\n")
	}

	h.reply(chatID, b.String())
}

// showPending отправляет каждую заявку отдельным сообщением с кнопками
func (h *Handler) showPending(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	pending, err := h.requestService.ListPending(ctx)
	if err != nil {
		h.replyError(chatID, "Could not load pending requests", err)
		return
	}

	if len(pending) == 0 {
		h.reply(chatID, "🎉 No pending requests.")
		return
	}

	h.reply(chatID, fmt.Sprintf("⏳ Pending requests: %d", len(pending)))

	for _, req := range pending {
		msg := tgbotapi.NewMessage(chatID, h.formatPendingCard(req))
		id := strconv.Itoa(int(req.ID))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Approve", actionApprove+":"+id),
				tgbotapi.NewInlineKeyboardButtonData("❌ Deny", actionDeny+":"+id),
			),
		)
		if _, err := h.bot.Send(msg); err != nil {
			logrus.WithError(err).Error("Failed to send pending request card")
		}
	}
}

// decide переводит заявку в Approved/Denied от имени администратора;
// возвращает true, если статус записан
func (h *Handler) decide(ctx context.Context, chatID int64, args string, status models.Status) bool {
	if !h.requireAdmin(ctx, chatID) {
		return false
	}

	id, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || id <= 0 {
		h.reply(chatID, "✏️ Usage: /approve <id> or /deny <id>")
		return false
	}

	if err := h.requestService.Transition(ctx, models.RequestID(id), status); err != nil {
		h.replyError(chatID, "Could not update request", err)
		return false
	}

	icon := "✅"
	if status == models.StatusDenied {
		icon = "❌"
	}
	h.reply(chatID, fmt.Sprintf("%s Request #%d marked as %s. The requester will be notified.", icon, id, status))
	return true
}

func (h *Handler) formatRequestLine(req models.LeaveRequest) string {
	icon := "⏳"
	switch req.Status {
	case models.StatusApproved:
		icon = "✅"
	case models.StatusDenied:
		icon = "❌"
	}

	line := fmt.Sprintf("%s #%d %s - %s\n", icon, req.ID, h.displayDate(req), req.Status)
	if req.Comment != "" {
		line += "   📝 " + req.Comment + "\n"
	}
	return line
}

func (h *Handler) formatPendingCard(req models.LeaveRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📄 Request #%d\n", req.ID)
	fmt.Fprintf(&b, "👤 %s (%s)\n", req.RequesterName, req.RequesterEmail)
	fmt.Fprintf(&b, "🗓️ %s\n", h.displayDate(req))
	fmt.Fprintf(&b, "🏫 School year: %s", req.PeriodLabel)
	if req.Comment != "" {
		fmt.Fprintf(&b, "\n📝 %s", req.Comment)
	}
	return b.String()
}

func (h *Handler) displayDate(req models.LeaveRequest) string {
	if req.HasValidDate() {
		return dates.Format(req.RequestedDate, h.loc)
	}
	return req.RawDate
}
