package models

import (
	"time"
)

// SheetRow - строка табличного хранилища. Position нумеруется с 1 внутри листа.
type SheetRow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Sheet     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_sheet_position" json:"sheet"`
	Position  int       `gorm:"not null;uniqueIndex:idx_sheet_position" json:"position"`
	Cells     []string  `gorm:"serializer:json;not null" json:"cells"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SheetRow) TableName() string {
	return "sheet_rows"
}
