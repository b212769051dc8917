package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"commons-core/models"
)

// PidAllocator vergibt Objekt-Ids aus einem monotonen, namespaced
// Zähler. Vergebene Werte werden nie wiederverwendet, auch wenn der
// Deposit später abbricht.
type PidAllocator struct {
	db *gorm.DB
}

// NewPidAllocator erstellt einen neuen PidAllocator.
func NewPidAllocator(db *gorm.DB) *PidAllocator {
	return &PidAllocator{db: db}
}

// AllocatePair reserviert zwei aufeinanderfolgende Ids in einem Block:
// die erste für den Aggregator, die zweite für die Resource.
func (a *PidAllocator) AllocatePair(namespace string) (models.IdentifierPair, error) {
	var pair models.IdentifierPair
	err := a.db.Transaction(func(tx *gorm.DB) error {
		var counter models.PidCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("namespace = ?", namespace).
			First(&counter).Error
		if err == gorm.ErrRecordNotFound {
			counter = models.PidCounter{Namespace: namespace}
			if err := tx.Create(&counter).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		counter.LastValue += 2
		if err := tx.Save(&counter).Error; err != nil {
			return err
		}
		pair.AggregatorPid = fmt.Sprintf("%s:%d", namespace, counter.LastValue-1)
		pair.ResourcePid = fmt.Sprintf("%s:%d", namespace, counter.LastValue)
		return nil
	})
	if err != nil {
		return models.IdentifierPair{}, &AllocationError{Namespace: namespace, Err: err}
	}
	return pair, nil
}

// Allocate reserviert eine einzelne Id, z.B. für das Collection-Objekt.
func (a *PidAllocator) Allocate(namespace string) (string, error) {
	var pid string
	err := a.db.Transaction(func(tx *gorm.DB) error {
		var counter models.PidCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("namespace = ?", namespace).
			First(&counter).Error
		if err == gorm.ErrRecordNotFound {
			counter = models.PidCounter{Namespace: namespace}
			if err := tx.Create(&counter).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		counter.LastValue++
		if err := tx.Save(&counter).Error; err != nil {
			return err
		}
		pid = fmt.Sprintf("%s:%d", namespace, counter.LastValue)
		return nil
	})
	if err != nil {
		return "", &AllocationError{Namespace: namespace, Err: err}
	}
	return pid, nil
}

// DoiCandidate ist der Metadatensatz, mit dem eine DOI reserviert wird.
type DoiCandidate struct {
	Target    string
	Creators  string
	Title     string
	Publisher string
	Date      string
	Type      string
}

// BuildDoiCandidate baut den Reservierungs-Kandidaten aus der
// normalisierten Metadata. Die Creator-Liste enthält alle Beitragenden
// mit Creator-Rollen, kommasepariert in Autorenreihenfolge.
func BuildDoiCandidate(siteURL string, md *models.NormalizedMetadata, aggregatorPid string) DoiCandidate {
	return DoiCandidate{
		Target:    FallbackHandle(siteURL, aggregatorPid),
		Creators:  strings.Join(md.CreatorList(), ", "),
		Title:     md.Title,
		Publisher: md.Publisher,
		Date:      md.DateIssued,
		Type:      md.Genre,
	}
}

// FallbackHandle ist der Permalink, der die DOI ersetzt, wenn die
// Reservierung fehlschlägt.
func FallbackHandle(siteURL, aggregatorPid string) string {
	return fmt.Sprintf("%s/deposits/item/%s/", strings.TrimRight(siteURL, "/"), aggregatorPid)
}
