package models

import "time"

// ActivityEntry ist ein Eintrag im Activity-Feed eines Nutzers.
type ActivityEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UUID     string `json:"uuid" gorm:"uniqueIndex"`
	Login    string `json:"login" gorm:"index"`
	RecordID uint   `json:"record_id" gorm:"index"`
	Excerpt  string `json:"excerpt,omitempty" gorm:"type:text"`
	Link     string `json:"link,omitempty"`
}

// Notification ist eine Benachrichtigung an ein Review-Gruppenmitglied.
type Notification struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"created_at"`

	Login         string `json:"login" gorm:"index"`
	ItemID        uint   `json:"item_id"`
	SecondaryItem string `json:"secondary_item,omitempty"`
	Component     string `json:"component"`
	Action        string `json:"action"`
	IsNew         bool   `json:"is_new"`
}

// CacheEntry ist ein invalidierbarer Cache-Schlüssel, z.B. pro Autoren-Uni.
type CacheEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Scope string `json:"scope" gorm:"index:idx_cache_scope_key"`
	Key   string `json:"key" gorm:"index:idx_cache_scope_key"`
	Value string `json:"value,omitempty" gorm:"type:text"`
}
