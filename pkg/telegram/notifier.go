package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// ChatLookup возвращает чат по адресу, 0 - если адрес не привязан
type ChatLookup func(ctx context.Context, email string) (int64, error)

// Notifier дублирует письма в личные чаты сотрудников
type Notifier struct {
	sender      Sender
	lookup      ChatLookup
	adminChatID int64
	logger      *logrus.Logger
}

func NewNotifier(sender Sender, lookup ChatLookup, adminChatID int64, logger *logrus.Logger) *Notifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Notifier{
		sender:      sender,
		lookup:      lookup,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// Send пишет адресату, если у него есть чат с ботом
func (n *Notifier) Send(ctx context.Context, to, subject, body string) error {
	chatID, err := n.lookup(ctx, to)
	if err != nil {
		return fmt.Errorf("lookup chat for %s: %w", to, err)
	}
	if chatID == 0 {
		n.logger.WithField("email", to).Debug("No chat linked, telegram message skipped")
		return nil
	}
	return n.push(chatID, subject, body)
}

// SendDigest пишет в чат администрации и каждому получателю с чатом
func (n *Notifier) SendDigest(ctx context.Context, recipients []string, subject, body string) error {
	seen := make(map[int64]bool)
	var errs []error

	if n.adminChatID != 0 {
		seen[n.adminChatID] = true
		if err := n.push(n.adminChatID, subject, body); err != nil {
			errs = append(errs, err)
		}
	}

	for _, email := range recipients {
		chatID, err := n.lookup(ctx, email)
		if err != nil {
			errs = append(errs, fmt.Errorf("lookup chat for %s: %w", email, err))
			continue
		}
		if chatID == 0 || seen[chatID] {
			continue
		}
		seen[chatID] = true
		if err := n.push(chatID, subject, body); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (n *Notifier) push(chatID int64, subject, body string) error {
	msg := tgbotapi.NewMessage(chatID, subject+"\n\n"+body)
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}
