package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"personal-days-bot/internal/models"
	"personal-days-bot/internal/repository"
	"personal-days-bot/pkg/validation"

	"github.com/sirupsen/logrus"
)

const CodeInvalidPayload = "invalid_payload"

type RegisterPayload struct {
	ChatID    int64  `validate:"required"`
	Username  string `validate:"max=64"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"max=100"`
	Email     string `validate:"required,email"`
}

type UserService struct {
	repo   repository.UserRepository
	admins repository.AdminRecipientRepository
	logger *logrus.Logger
}

func NewUserService(repo repository.UserRepository, admins repository.AdminRecipientRepository) *UserService {
	return &UserService{repo: repo, admins: admins, logger: newLogger()}
}

// Register привязывает чат к адресу сотрудника
func (s *UserService) Register(ctx context.Context, payload RegisterPayload) (*models.User, error) {
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	payload.FirstName = strings.TrimSpace(payload.FirstName)

	if fieldErrors := validation.ValidateStruct(payload); len(fieldErrors) > 0 {
		return nil, newError(ValidationError, CodeInvalidPayload, validation.Join(fieldErrors))
	}

	user := &models.User{
		ChatID:    payload.ChatID,
		Username:  payload.Username,
		FirstName: payload.FirstName,
		LastName:  strings.TrimSpace(payload.LastName),
		Email:     payload.Email,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, newError(StateError, CodeInvalidPayload, "this chat or email is already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"chat_id": user.ChatID,
		"email":   user.Email,
	}).Info("User registered")

	return user, nil
}

// GetUser возвращает пользователя по chatID
func (s *UserService) GetUser(ctx context.Context, chatID int64) (*models.User, error) {
	user, err := s.repo.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if user == nil {
		return nil, newError(StateError, CodeNotFound, "user not registered")
	}

	return user, nil
}

// Identity строит личность для операций с заявками
func (s *UserService) Identity(ctx context.Context, chatID int64) (Identity, error) {
	user, err := s.GetUser(ctx, chatID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Email: user.Email, Name: user.FullName()}, nil
}

func (s *UserService) DeleteUser(ctx context.Context, chatID int64) error {
	return s.repo.Delete(ctx, chatID)
}

// IsAdmin проверяет адрес по листу администраторов
func (s *UserService) IsAdmin(ctx context.Context, email string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}
	return s.admins.Exists(ctx, email)
}

// SeedAdmins добавляет адреса из конфига, которых еще нет в листе
func (s *UserService) SeedAdmins(ctx context.Context, emails []string) (int, error) {
	added := 0
	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}

		exists, err := s.admins.Exists(ctx, email)
		if err != nil {
			return added, err
		}
		if exists {
			continue
		}

		if err := s.admins.Create(ctx, &models.AdminRecipient{Email: email}); err != nil {
			return added, err
		}
		added++
	}

	if added > 0 {
		s.logger.WithField("added", added).Info("Admin recipients seeded")
	}
	return added, nil
}

// FormatUserInfo форматирует информацию о пользователе для вывода
func (s *UserService) FormatUserInfo(user *models.User, isAdmin bool) string {
	var lines []string

	lines = append(lines, "👤 Profile:")
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("🆔 Chat ID: %d", user.ChatID))

	if user.Username != "" {
		lines = append(lines, fmt.Sprintf("📛 Username: @%s", user.Username))
	}

	lines = append(lines, fmt.Sprintf("👨‍💼 Name: %s", user.FullName()))
	lines = append(lines, fmt.Sprintf("📧 Email: %s", user.Email))

	if isAdmin {
		lines = append(lines, "👑 Role: admin")
	} else {
		lines = append(lines, "👤 Role: staff")
	}

	return strings.Join(lines, "\n")
}
