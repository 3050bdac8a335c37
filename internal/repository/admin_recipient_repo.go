package repository

import (
	"context"
	"strings"

	"personal-days-bot/internal/models"
)

type AdminRecipientRepository interface {
	GetAll(ctx context.Context) ([]models.AdminRecipient, error)
	Create(ctx context.Context, recipient *models.AdminRecipient) error
	Exists(ctx context.Context, email string) (bool, error)
}

// SheetAdminRecipientRepository - лист admins с одной колонкой адресов
type SheetAdminRecipientRepository struct {
	store TabularStore
}

func NewSheetAdminRecipientRepository(store TabularStore) *SheetAdminRecipientRepository {
	return &SheetAdminRecipientRepository{store: store}
}

func (r *SheetAdminRecipientRepository) GetAll(ctx context.Context) ([]models.AdminRecipient, error) {
	rows, err := r.store.ReadAll(ctx, SheetAdmins)
	if err != nil {
		return nil, err
	}

	var recipients []models.AdminRecipient
	for _, row := range rows {
		email := strings.TrimSpace(row.Cell(0))
		if email == "" {
			continue
		}
		recipients = append(recipients, models.AdminRecipient{Email: email})
	}
	return recipients, nil
}

func (r *SheetAdminRecipientRepository) Create(ctx context.Context, recipient *models.AdminRecipient) error {
	_, err := r.store.Append(ctx, SheetAdmins, Row{strings.TrimSpace(recipient.Email)})
	return err
}

func (r *SheetAdminRecipientRepository) Exists(ctx context.Context, email string) (bool, error) {
	recipients, err := r.GetAll(ctx)
	if err != nil {
		return false, err
	}

	for _, recipient := range recipients {
		if strings.EqualFold(recipient.Email, strings.TrimSpace(email)) {
			return true, nil
		}
	}
	return false, nil
}
