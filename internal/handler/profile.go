package handler

import (
	"context"
	"strings"

	"personal-days-bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// register привязывает чат к рабочему адресу
func (h *Handler) register(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID

	email := strings.TrimSpace(args)
	if email == "" {
		h.reply(chatID, "✏️ Usage: /register name.surname@school.org")
		return
	}

	payload := service.RegisterPayload{
		ChatID: chatID,
		Email:  email,
	}
	if message.From != nil {
		payload.Username = message.From.UserName
		payload.FirstName = message.From.FirstName
		payload.LastName = message.From.LastName
	}
	// В Telegram имя бывает пустым, тогда берем его из адреса
	if strings.TrimSpace(payload.FirstName) == "" {
		payload.FirstName = service.DisplayNameFromEmail(email)
	}

	user, err := h.userService.Register(ctx, payload)
	if err != nil {
		h.replyError(chatID, "Registration failed", err)
		return
	}

	isAdmin, _ := h.userService.IsAdmin(ctx, user.Email)
	h.reply(chatID, "✅ Registered!\n\n"+h.userService.FormatUserInfo(user, isAdmin))
}

func (h *Handler) showProfile(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	user, err := h.userService.GetUser(ctx, chatID)
	if err != nil {
		h.replyNotRegistered(chatID, err)
		return
	}

	isAdmin, err := h.userService.IsAdmin(ctx, user.Email)
	if err != nil {
		logrus.WithError(err).Warn("Failed to check admin role")
	}

	h.reply(chatID, h.userService.FormatUserInfo(user, isAdmin))
}

func (h *Handler) deleteProfile(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	if err := h.userService.DeleteUser(ctx, chatID); err != nil {
		h.replyError(chatID, "Could not delete profile", err)
		return
	}

	h.reply(chatID, "✅ This chat is no longer linked. Your requests are kept in the ledger.")
}

func (h *Handler) replyNotRegistered(chatID int64, err error) {
	if service.CodeOf(err) == service.CodeNotFound {
		h.reply(chatID, "❌ Profile not found.\nUse /register <email> to link your work email.")
		return
	}
	h.replyError(chatID, "Could not load profile", err)
}

// isAdminChat - чат привязан к адресу из листа администраторов
// или это базовый чат администрации из конфига
func (h *Handler) isAdminChat(ctx context.Context, chatID int64) bool {
	if h.config != nil && h.config.BaseAdminChatID != 0 && h.config.BaseAdminChatID == chatID {
		return true
	}

	user, err := h.userService.GetUser(ctx, chatID)
	if err != nil {
		return false
	}

	isAdmin, err := h.userService.IsAdmin(ctx, user.Email)
	if err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Warn("Failed to check admin role")
		return false
	}
	return isAdmin
}

// requireAdmin отвечает отказом, если чат не администраторский
func (h *Handler) requireAdmin(ctx context.Context, chatID int64) bool {
	if h.isAdminChat(ctx, chatID) {
		return true
	}
	h.reply(chatID, "❌ Access denied. This command is for administrators only.")
	return false
}
