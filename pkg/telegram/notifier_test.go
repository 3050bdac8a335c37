package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeSender struct {
	sent   []tgbotapi.MessageConfig
	failOn int64
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if msg.ChatID == f.failOn {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) chats() []int64 {
	ids := make([]int64, 0, len(f.sent))
	for _, m := range f.sent {
		ids = append(ids, m.ChatID)
	}
	return ids
}

func staticLookup(chats map[string]int64) ChatLookup {
	return func(_ context.Context, email string) (int64, error) {
		if email == "broken@school.org" {
			return 0, errors.New("db closed")
		}
		return chats[email], nil
	}
}

func TestNotifier_Send(t *testing.T) {
	sender := &fakeSender{}
	logger, _ := test.NewNullLogger()
	n := NewNotifier(sender, staticLookup(map[string]int64{"ana@school.org": 10}), 0, logger)
	ctx := context.Background()

	if err := n.Send(ctx, "ana@school.org", "Request approved", "See you on 20/06/2024"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].ChatID != 10 {
		t.Fatalf("ожидали сообщение в чат 10, получили %v", sender.chats())
	}
	if !strings.HasPrefix(sender.sent[0].Text, "Request approved\n\n") {
		t.Errorf("текст должен начинаться с темы: %q", sender.sent[0].Text)
	}

	// Нет привязанного чата - молча пропускаем
	if err := n.Send(ctx, "nobody@school.org", "x", "y"); err != nil || len(sender.sent) != 1 {
		t.Errorf("без чата: err=%v sent=%d", err, len(sender.sent))
	}

	if err := n.Send(ctx, "broken@school.org", "x", "y"); err == nil {
		t.Errorf("ошибка поиска чата должна возвращаться")
	}
}

func TestNotifier_SendDigest(t *testing.T) {
	sender := &fakeSender{}
	logger, _ := test.NewNullLogger()
	chats := map[string]int64{
		"director@school.org": 500,
		"head@school.org":     20,
		"deputy@school.org":   20,
	}
	n := NewNotifier(sender, staticLookup(chats), 500, logger)

	err := n.SendDigest(context.Background(),
		[]string{"director@school.org", "head@school.org", "deputy@school.org", "nochat@school.org"},
		"Expiring requests", "1. ...")
	if err != nil {
		t.Fatalf("SendDigest: %v", err)
	}

	// Чат администрации первым, дубликаты чатов отбрасываются
	got := sender.chats()
	if len(got) != 2 || got[0] != 500 || got[1] != 20 {
		t.Errorf("ожидали чаты [500 20], получили %v", got)
	}
}

func TestNotifier_SendDigest_CollectsErrors(t *testing.T) {
	sender := &fakeSender{failOn: 30}
	logger, _ := test.NewNullLogger()
	n := NewNotifier(sender, staticLookup(map[string]int64{
		"a@school.org": 30,
		"b@school.org": 40,
	}), 0, logger)

	err := n.SendDigest(context.Background(),
		[]string{"a@school.org", "broken@school.org", "b@school.org"}, "s", "b")
	if err == nil {
		t.Fatal("ожидали ошибку")
	}
	if !strings.Contains(err.Error(), "chat 30") || !strings.Contains(err.Error(), "broken@school.org") {
		t.Errorf("в ошибке должны быть оба сбоя: %v", err)
	}

	// Остальные получатели все равно получают сводку
	if got := sender.chats(); len(got) != 1 || got[0] != 40 {
		t.Errorf("ожидали доставку в чат 40, получили %v", got)
	}
}
