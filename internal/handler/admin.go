package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"personal-days-bot/pkg/dates"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// showExpiring: /expiring [дней]
func (h *Handler) showExpiring(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	horizon := h.reminderService.Horizon()
	if arg := strings.TrimSpace(args); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			h.reply(chatID, "✏️ Usage: /expiring [days]")
			return
		}
		horizon = n
	}

	expiring, err := h.reminderService.FindExpiringSoon(ctx, horizon)
	if err != nil {
		h.replyError(chatID, "Could not load pending requests", err)
		return
	}

	if len(expiring) == 0 {
		h.reply(chatID, fmt.Sprintf("🎉 No pending requests within %d days.", horizon))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📌 Pending requests within %d days:\n\n", horizon)
	for i, req := range expiring {
		fmt.Fprintf(&b, "%d. #%d 🗓️ %s (in %d days) - %s (%s)\n",
			i+1, req.RequestID, dates.Format(req.Date, h.loc), req.DaysRemaining, req.RequesterName, req.RequesterEmail)
		if req.Comment != "" {
			fmt.Fprintf(&b, "   📝 %s\n", req.Comment)
		}
	}

	h.reply(chatID, b.String())
}

// sendReminder отправляет сводку администраторам прямо сейчас
func (h *Handler) sendReminder(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	count, err := h.reminderService.NotifyExpiringSoon(ctx)
	if err != nil {
		h.replyError(chatID, "Reminder not sent", err)
		return
	}

	if count == 0 {
		h.reply(chatID, "ℹ️ Nothing to remind: no pending requests close to their date, or no admin recipients.")
		return
	}

	h.reply(chatID, fmt.Sprintf("📨 Reminder sent for %d requests.", count))
}

func (h *Handler) exportLedger(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	buf, filename, err := h.exportService.ExportLedger(ctx)
	if err != nil {
		h.replyError(chatID, "Export failed", err)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: buf.Bytes()})
	doc.Caption = "📊 Personal days ledger"
	if _, err := h.bot.Send(doc); err != nil {
		logrus.WithError(err).Error("Failed to send export")
		h.reply(chatID, "❌ Could not send the file. Please try again later.")
	}
}
