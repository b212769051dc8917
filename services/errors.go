package services

import (
	"fmt"
	"time"
)

// ValidationError meldet ein fehlendes oder unbrauchbares Eingabefeld.
// Eingaben werden nie stillschweigend korrigiert, mit Ausnahme des
// Datums-Fallbacks im Date-Resolver.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q %s", e.Field, e.Reason)
}

// DuplicateError bricht den Deposit ab, bevor irgendein Zustand entsteht.
// Er trägt genug Kontext für die Nutzer-Meldung ("X deposited another ...").
type DuplicateError struct {
	ExistingPid   string
	ExistingTitle string
	DepositedAt   time.Time
	ScopeName     string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate: matching deposit %s (%q)", e.ExistingPid, e.ExistingTitle)
}

// AllocationError: die Pid-Vergabe ist fehlgeschlagen; es existiert noch
// kein durabler Zustand.
type AllocationError struct {
	Namespace string
	Err       error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation: namespace %s: %v", e.Namespace, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// CompositionError: ein Dokument konnte nicht erzeugt werden.
type CompositionError struct {
	Document string
	Reason   string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composition: %s: %s", e.Document, e.Reason)
}

// IndexingError klassifiziert Suchindex-Fehler als transient oder permanent.
// Transiente Fehler werden genau einmal mit Metadata-only wiederholt.
type IndexingError struct {
	Transient bool
	Err       error
}

func (e *IndexingError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("indexing (%s): %v", kind, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

// IngestError: Repository-Ingest fehlgeschlagen. Nach dokumentiertem
// Legacy-Verhalten wird nur geloggt, nicht kompensiert.
type IngestError struct {
	Pid string
	Err error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest: object %s: %v", e.Pid, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// RegistryError: DOI-Registry-Fehler; nie abbrechend.
type RegistryError struct {
	Op  string
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("doi registry: %s: %v", e.Op, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }
