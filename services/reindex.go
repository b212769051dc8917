package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"commons-core/models"
)

// ReindexQueue liefert die Records, deren Volltext noch aussteht.
type ReindexQueue interface {
	ListNeedingReindex(limit int) ([]models.DepositRecord, error)
	ClearReindex(pid string) error
}

// DatastreamFetcher liest Datastreams aus dem Repository zurück.
type DatastreamFetcher interface {
	FetchDatastream(ctx context.Context, pid, dsid string) ([]byte, error)
}

// ReindexSweeper indiziert im Hintergrund die Deposits nach, deren
// Volltext beim Registrieren übersprungen oder verworfen wurde.
type ReindexSweeper struct {
	Queue     ReindexQueue
	Fetcher   DatastreamFetcher
	Index     SearchIndex
	Extractor TextExtractor
	Logger    *zap.Logger
	BatchSize int
}

// Sweep arbeitet einen Batch ab. Fehler einzelner Records werden
// geloggt und isoliert; das Reindex-Flag bleibt dann für den nächsten
// Durchlauf stehen.
func (s *ReindexSweeper) Sweep(ctx context.Context) {
	recs, err := s.Queue.ListNeedingReindex(s.BatchSize)
	if err != nil {
		s.Logger.Error("Reindex-Batch konnte nicht geladen werden", zap.Error(err))
		return
	}
	for i := range recs {
		rec := &recs[i]
		if err := s.reindexOne(ctx, rec); err != nil {
			s.Logger.Warn("Hintergrund-Indizierung fehlgeschlagen",
				zap.String("pid", rec.Pid), zap.Error(err))
			continue
		}
		if err := s.Queue.ClearReindex(rec.Pid); err != nil {
			s.Logger.Warn("Reindex-Flag konnte nicht gelöscht werden",
				zap.String("pid", rec.Pid), zap.Error(err))
		}
	}
}

func (s *ReindexSweeper) reindexOne(ctx context.Context, rec *models.DepositRecord) error {
	var md models.NormalizedMetadata
	if err := json.Unmarshal([]byte(rec.MetadataJSON), &md); err != nil {
		return err
	}

	fullText := ""
	var fm models.FileMetadata
	if err := json.Unmarshal([]byte(rec.FileMetadataJSON), &fm); err == nil && len(fm.Files) > 0 {
		file := fm.Files[0]
		content, err := s.Fetcher.FetchDatastream(ctx, file.Pid, file.DatastreamID)
		if err != nil {
			return err
		}
		// Im Hintergrund gilt die Größenschwelle nicht.
		fullText, err = s.Extractor.ExtractText(content, file.Filetype)
		if err != nil {
			return err
		}
	}

	return s.Index.IndexDeposit(&md, fullText)
}
