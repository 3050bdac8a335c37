package handler

import (
	"context"
	"errors"

	"personal-days-bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	args := message.CommandArguments()

	switch command {
	case "start":
		h.sendStartMessage(message)
	case "help":
		h.sendHelpMessage(ctx, message)

	// Профиль
	case "register":
		h.register(ctx, message, args)
	case "myprofile":
		h.showProfile(ctx, message)
	case "deleteprofile":
		h.deleteProfile(ctx, message)

	// Заявки (все пользователи)
	case "request":
		h.submitRequest(ctx, message, args)
	case "my":
		h.showMyRequests(ctx, message)
	case "exceptions":
		h.showExceptions(ctx, message)

	// Администрация
	case "pending":
		h.showPending(ctx, message)
	case "approve":
		h.decide(ctx, message.Chat.ID, args, statusForAction(actionApprove))
	case "deny":
		h.decide(ctx, message.Chat.ID, args, statusForAction(actionDeny))
	case "expiring":
		h.showExpiring(ctx, message, args)
	case "remind":
		h.sendReminder(ctx, message)
	case "export":
		h.exportLedger(ctx, message)

	default:
		h.sendUnknownCommand(message)
	}
}

func (h *Handler) sendUnknownCommand(message *tgbotapi.Message) {
	h.reply(message.Chat.ID, "❌ Unknown command. Use /help to see the available commands.")
}

func (h *Handler) sendStartMessage(message *tgbotapi.Message) {
	text := `👋 Hi! I manage personal day requests.

To get started link your work email:
/register name.surname@school.org

Then request a day with:
/request dd.mm.yyyy [comment]

Use /help to see everything I can do.`

	h.reply(message.Chat.ID, text)
}

func (h *Handler) sendHelpMessage(ctx context.Context, message *tgbotapi.Message) {
	text := `📋 Available commands:

👤 Profile:
/register <email> - Link your work email
/myprofile - Show my profile
/deleteprofile - Unlink this chat

🗓️ Personal days:
/request <dd.mm.yyyy> [comment] - Request a personal day
/my - My requests and remaining days
/exceptions - Restricted dates`

	if h.isAdminChat(ctx, message.Chat.ID) {
		text += `

👑 Administration:
/pending - Pending requests
/approve <id> - Approve a request
/deny <id> - Deny a request
/expiring [days] - Pending requests close to their date
/remind - Send the reminder digest now
/export - Download the ledger (.xlsx)`
	}

	h.reply(message.Chat.ID, text)
}

// userMessage - текст ошибки домена без технических подробностей
func userMessage(err error) string {
	var se *service.Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
