package services

import (
	"errors"

	"gorm.io/gorm"

	"commons-core/models"
)

// DuplicateGuard prüft vor jeglicher Zustandsänderung, ob im selben
// Scope (Gruppe bzw. Submitter) bereits ein gleicher Deposit existiert.
type DuplicateGuard struct {
	db *gorm.DB
}

// NewDuplicateGuard erstellt einen neuen DuplicateGuard.
func NewDuplicateGuard(db *gorm.DB) *DuplicateGuard {
	return &DuplicateGuard{db: db}
}

// Check sucht einen bestehenden Primärrecord mit gleichem Titel, Genre
// und Scope-Key. Ein Treffer liefert einen DuplicateError mit dem
// Kontext für die Nutzer-Meldung. Die Prüfung ist nicht transaktional
// mit der Anlage; zwei zeitgleiche identische Deposits können beide
// durchkommen.
func (g *DuplicateGuard) Check(title, genre, scopeKey, scopeName string) error {
	var existing models.DepositRecord
	err := g.db.
		Where("title = ? AND genre = ? AND scope_key = ? AND parent_id IS NULL", title, genre, scopeKey).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return &DuplicateError{
		ExistingPid:   existing.Pid,
		ExistingTitle: existing.Title,
		DepositedAt:   existing.CreatedAt,
		ScopeName:     scopeName,
	}
}
