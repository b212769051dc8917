package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"commons-core/models"
)

// Store bündelt alle datenbankgestützten Concerns: Records,
// Mitgliederverzeichnis, Taxonomie-Terme, Activity und Cache.
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewStore erstellt einen neuen Store.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{DB: db, Logger: logger}
}

// --- Records ---

// CreateRecord legt einen Deposit-Record an.
func (s *Store) CreateRecord(rec *models.DepositRecord) error {
	return s.DB.Create(rec).Error
}

// UpdateRecord persistiert Änderungen an einem Record.
func (s *Store) UpdateRecord(rec *models.DepositRecord) error {
	return s.DB.Save(rec).Error
}

// GetByPid lädt einen Record über seine Objekt-Id.
func (s *Store) GetByPid(pid string) (*models.DepositRecord, error) {
	var rec models.DepositRecord
	if err := s.DB.Where("pid = ?", pid).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteRecordByPid entfernt einen Record endgültig (Kompensation).
func (s *Store) DeleteRecordByPid(pid string) error {
	return s.DB.Unscoped().Where("pid = ?", pid).Delete(&models.DepositRecord{}).Error
}

// HasDeposits meldet, ob ein Submitter bereits Primärrecords besitzt.
func (s *Store) HasDeposits(login string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.DepositRecord{}).
		Where("submitter = ? AND parent_id IS NULL", login).
		Count(&count).Error
	return count > 0, err
}

// ListNeedingReindex holt den nächsten Batch für den Hintergrund-Sweep.
func (s *Store) ListNeedingReindex(limit int) ([]models.DepositRecord, error) {
	var recs []models.DepositRecord
	err := s.DB.Where("needs_reindex = ?", true).
		Order("updated_at asc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// ClearReindex markiert einen Record als fertig indiziert.
func (s *Store) ClearReindex(pid string) error {
	return s.DB.Model(&models.DepositRecord{}).
		Where("pid = ?", pid).
		Update("needs_reindex", false).Error
}

// --- Mitgliederverzeichnis ---

// FindByLogin sucht ein Mitglied über seinen Login.
func (s *Store) FindByLogin(login string) (*models.Member, error) {
	var m models.Member
	if err := s.DB.Where("login = ?", login).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByName sucht ein Mitglied über Vor- und Nachnamen. Kein Treffer
// ist kein Fehler, der Autor bleibt dann unangereichert.
func (s *Store) FindByName(first, last string) (*models.Member, error) {
	var m models.Member
	err := s.DB.Where("first_name = ? AND last_name = ?", first, last).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// HasSingleMemberType meldet, ob ein Mitglied genau den einen
// Mitgliedstyp trägt.
func (s *Store) HasSingleMemberType(login, memberType string) (bool, error) {
	m, err := s.FindByLogin(login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	types := strings.Split(m.MemberTypes, ",")
	return len(types) == 1 && strings.TrimSpace(types[0]) == memberType, nil
}

// --- Gruppen ---

// GetGroup lädt eine Gruppe über ihre Id.
func (s *Store) GetGroup(id uint) (*models.Group, error) {
	var g models.Group
	if err := s.DB.First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGroupBySlug lädt eine Gruppe über ihren Slug.
func (s *Store) GetGroupBySlug(slug string) (*models.Group, error) {
	var g models.Group
	if err := s.DB.Where("slug = ?", slug).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// GroupMemberLogins gibt die Logins aller Mitglieder einer Gruppe zurück.
func (s *Store) GroupMemberLogins(slug string) ([]string, error) {
	group, err := s.GetGroupBySlug(slug)
	if err != nil {
		return nil, err
	}
	var logins []string
	err = s.DB.Model(&models.GroupMembership{}).
		Where("group_id = ?", group.ID).
		Pluck("login", &logins).Error
	return logins, err
}

// --- Taxonomie ---

// ResolveSubjects bildet Subject-Namen auf Term-Ids ab. Unbekannte
// Subjects werden nicht angelegt, sondern mit Warnung verworfen.
func (s *Store) ResolveSubjects(names []string) ([]uint, []string, error) {
	var ids []uint
	var kept []string
	for _, name := range names {
		var term models.SubjectTerm
		err := s.DB.Where("name = ?", name).First(&term).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.Logger.Warn("Unbekanntes Subject verworfen.", zap.String("subject", name))
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, term.ID)
		kept = append(kept, term.Name)
	}
	return ids, kept, nil
}

// ResolveKeywords bildet Keyword-Namen auf Term-Ids ab und legt
// fehlende Terme neu an.
func (s *Store) ResolveKeywords(names []string) ([]uint, error) {
	var ids []uint
	for _, name := range names {
		var term models.KeywordTerm
		err := s.DB.Where("name = ?", name).First(&term).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			term = models.KeywordTerm{Name: name}
			if err := s.DB.Create(&term).Error; err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		ids = append(ids, term.ID)
	}
	return ids, nil
}

// --- Activity, Notifications, Cache ---

// RecordActivity schreibt einen Feed-Eintrag für den Submitter.
func (s *Store) RecordActivity(login string, recordID uint, excerpt, link string) error {
	entry := models.ActivityEntry{
		UUID:     uuid.NewString(),
		Login:    login,
		RecordID: recordID,
		Excerpt:  excerpt,
		Link:     link,
	}
	return s.DB.Create(&entry).Error
}

// NotifyReviewers benachrichtigt alle Mitglieder der Review-Gruppe.
// Fehler einzelner Empfänger werden geloggt und isoliert; die übrigen
// Benachrichtigungen gehen trotzdem raus.
func (s *Store) NotifyReviewers(groupSlug string, itemID uint, submitter string) (int, error) {
	logins, err := s.GroupMemberLogins(groupSlug)
	if err != nil {
		return 0, fmt.Errorf("review group %s: %w", groupSlug, err)
	}
	sent := 0
	for _, login := range logins {
		n := models.Notification{
			Login:         login,
			ItemID:        itemID,
			SecondaryItem: submitter,
			Component:     "deposits",
			Action:        "provisional_deposit_review",
			IsNew:         true,
		}
		if err := s.DB.Create(&n).Error; err != nil {
			s.Logger.Warn("Reviewer-Benachrichtigung fehlgeschlagen.",
				zap.String("login", login), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// InvalidateAuthorUnis löscht die Cache-Einträge der betroffenen Unis.
func (s *Store) InvalidateAuthorUnis(unis []string) error {
	if len(unis) == 0 {
		return nil
	}
	return s.DB.Where("scope = ? AND key IN ?", "author_uni", unis).
		Delete(&models.CacheEntry{}).Error
}
