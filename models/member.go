package models

import "time"

// Member ist ein Eintrag im bekannten Mitgliederverzeichnis.
type Member struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Login       string `json:"login" gorm:"uniqueIndex;not null"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Affiliation string `json:"affiliation,omitempty"`
	// Kommagetrennte Mitgliedstypen, z.B. "hc" oder "hc,mla".
	MemberTypes string `json:"member_types,omitempty"`
}

// Group ist eine Gruppe (Committee bzw. Review-Gruppe).
type Group struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Name string `json:"name"`
	Slug string `json:"slug" gorm:"uniqueIndex"`
}

// GroupMembership verknüpft Mitglieder mit Gruppen.
type GroupMembership struct {
	ID      uint `json:"id" gorm:"primaryKey"`
	GroupID uint `json:"group_id" gorm:"index"`
	Login   string `json:"login" gorm:"index"`
}

// SubjectTerm ist ein kontrollierter Schlagwort-Begriff. Unbekannte
// Subjects werden beim Deposit nicht neu angelegt.
type SubjectTerm struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

// KeywordTerm ist ein freies Tag; unbekannte Keywords werden beim
// Deposit neu angelegt.
type KeywordTerm struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

// PidCounter ist der monotone, namespaced Zähler für die Objekt-Ids.
// Vergebene Werte werden nie wiederverwendet.
type PidCounter struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Namespace string `json:"namespace" gorm:"uniqueIndex;not null"`
	LastValue int64  `json:"last_value"`
}
