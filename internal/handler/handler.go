package handler

import (
	"context"
	"strings"
	"time"

	"personal-days-bot/internal/config"
	"personal-days-bot/internal/service"
	"personal-days-bot/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	bot              telegram.Sender
	userService      *service.UserService
	requestService   *service.LeaveRequestService
	reminderService  *service.ReminderService
	exceptionService *service.ExceptionService
	exportService    *service.ExportService
	config           *config.BotConfig
	loc              *time.Location
	now              func() time.Time
}

func NewHandler(
	bot telegram.Sender,
	userService *service.UserService,
	requestService *service.LeaveRequestService,
	reminderService *service.ReminderService,
	exceptionService *service.ExceptionService,
	exportService *service.ExportService,
	cfg *config.BotConfig,
) *Handler {
	loc := time.Local
	if cfg != nil && cfg.Location != nil {
		loc = cfg.Location
	}

	return &Handler{
		bot:              bot,
		userService:      userService,
		requestService:   requestService,
		reminderService:  reminderService,
		exceptionService: exceptionService,
		exportService:    exportService,
		config:           cfg,
		loc:              loc,
		now:              time.Now,
	}
}

// HandleUpdates читает обновления, пока канал открыт или не отменен ctx
func (h *Handler) HandleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	// Обработка callback query (для inline кнопок)
	if update.CallbackQuery != nil {
		h.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	h.handleMessage(ctx, update.Message)
}

// handleCallbackQuery обрабатывает кнопки одобрения/отказа под заявками
func (h *Handler) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	data := callback.Data

	action, arg, _ := strings.Cut(data, ":")
	switch action {
	case actionApprove, actionDeny:
		// Клавиатуру убираем только после записанного решения,
		// иначе карточку можно нажать еще раз
		if h.decide(ctx, chatID, arg, statusForAction(action)) {
			editMsg := tgbotapi.NewEditMessageReplyMarkup(chatID, callback.Message.MessageID, tgbotapi.NewInlineKeyboardMarkup())
			h.bot.Send(editMsg)
		}
	default:
		logrus.WithField("data", data).Warn("Unknown callback data")
	}

	// Отвечаем на callback (убираем "часики" у кнопки)
	h.bot.Send(tgbotapi.NewCallback(callback.ID, ""))
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	username := ""
	if message.From != nil {
		username = message.From.UserName
	}
	logrus.WithField("chat_id", message.Chat.ID).Infof("[%s] %s", username, message.Text)

	if message.IsCommand() {
		h.handleCommand(ctx, message)
		return
	}

	h.reply(message.Chat.ID, "Use /help to see the available commands.")
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

// replyError показывает пользователю сообщение ошибки домена, остальное прячет
func (h *Handler) replyError(chatID int64, prefix string, err error) {
	if service.KindOf(err) == service.ValidationError || service.KindOf(err) == service.StateError {
		h.reply(chatID, "❌ "+prefix+": "+userMessage(err))
		return
	}

	logrus.WithError(err).WithField("chat_id", chatID).Error(prefix)
	h.reply(chatID, "❌ "+prefix+". Please try again later.")
}
