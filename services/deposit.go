package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"commons-core/config"
	"commons-core/models"
)

// DuplicateChecker prüft den Deposit-Scope auf bestehende Duplikate.
type DuplicateChecker interface {
	Check(title, genre, scopeKey, scopeName string) error
}

// IdentifierAllocator vergibt die Objekt-Id-Paare.
type IdentifierAllocator interface {
	AllocatePair(namespace string) (models.IdentifierPair, error)
}

// RecordStore ist der durable Primärspeicher der Deposit-Records
// inklusive Taxonomie-Auflösung.
type RecordStore interface {
	CreateRecord(rec *models.DepositRecord) error
	UpdateRecord(rec *models.DepositRecord) error
	DeleteRecordByPid(pid string) error
	HasDeposits(login string) (bool, error)
	HasSingleMemberType(login, memberType string) (bool, error)
	ResolveSubjects(names []string) ([]uint, []string, error)
	ResolveKeywords(names []string) ([]uint, error)
}

// ActivitySink nimmt die Post-Commit-Effekte eines Deposits auf.
type ActivitySink interface {
	RecordActivity(login string, recordID uint, excerpt, link string) error
	NotifyReviewers(groupSlug string, itemID uint, submitter string) (int, error)
	InvalidateAuthorUnis(unis []string) error
}

// SearchIndex ist der Suchindex. Fehler müssen als IndexingError mit
// Transient-Flag klassifiziert sein.
type SearchIndex interface {
	IndexDeposit(md *models.NormalizedMetadata, fullText string) error
	Delete(pid string) error
}

// RepositoryStore ist der Objekt-Speicher für Wrapper und Datastreams.
type RepositoryStore interface {
	IngestObject(ctx context.Context, pid string, kind models.ObjectKind, foxml string) (*models.RepositoryObjectDescriptor, error)
	AttachDatastream(ctx context.Context, pid, dsid, label, mimeType string, data []byte) (*models.DatastreamRef, error)
}

// DoiRegistry reserviert und veröffentlicht DOIs.
type DoiRegistry interface {
	Reserve(candidate DoiCandidate) (string, error)
	Publish(doi, target string) error
}

// TextExtractor liefert den Volltext einer Datei für den Suchindex.
type TextExtractor interface {
	Eligible(filetype string, filesize int64) bool
	ExtractText(content []byte, filetype string) (string, error)
}

// DepositResult ist das Ergebnis eines erfolgreichen Deposits.
type DepositResult struct {
	Pid         string   `json:"pid"`
	ResourcePid string   `json:"resource_pid"`
	Status      string   `json:"status"`
	Handle      string   `json:"handle"`
	Doi         string   `json:"doi,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// DepositService orchestriert die gesamte Registrierungs-Pipeline über
// alle beteiligten Systeme.
type DepositService struct {
	Config     *config.Config
	Normalizer *MetadataNormalizer
	Guard      DuplicateChecker
	Pids       IdentifierAllocator
	Composer   *DocumentComposer
	Records    RecordStore
	Activity   ActivitySink
	Index      SearchIndex
	Repository RepositoryStore
	Registry   DoiRegistry
	Extractor  TextExtractor
	Logger     *zap.Logger

	DepositsTotal prometheus.Counter
	FailuresTotal prometheus.Counter

	now func() time.Time
}

// NewDepositService erstellt einen neuen DepositService.
func NewDepositService(cfg *config.Config, normalizer *MetadataNormalizer, guard DuplicateChecker,
	pids IdentifierAllocator, composer *DocumentComposer, records RecordStore, activity ActivitySink,
	index SearchIndex, repository RepositoryStore, registry DoiRegistry, extractor TextExtractor,
	logger *zap.Logger, depositsTotal, failuresTotal prometheus.Counter) *DepositService {
	return &DepositService{
		Config: cfg, Normalizer: normalizer, Guard: guard, Pids: pids, Composer: composer,
		Records: records, Activity: activity, Index: index, Repository: repository,
		Registry: registry, Extractor: extractor, Logger: logger,
		DepositsTotal: depositsTotal, FailuresTotal: failuresTotal,
		now: time.Now,
	}
}

// Deposit registriert einen neuen Deposit. Required-Schritte brechen
// bei Fehler ab und rollen bereits entstandenen Zustand zurück;
// Best-Effort-Schritte loggen nur. Der Repository-Ingest wird nach
// dokumentiertem Legacy-Verhalten nie kompensiert.
func (d *DepositService) Deposit(ctx context.Context, sub *models.DepositSubmission) (*DepositResult, error) {
	now := d.now()
	submitter := sub.AuthorUni

	md, err := d.Normalizer.Normalize(sub, now)
	if err != nil {
		d.FailuresTotal.Inc()
		return nil, err
	}
	md.Submitter = submitter
	md.SocietyID = d.Config.SocietyID
	md.MemberOf = d.Config.CollectionPid
	md.RecordContentSource = strings.ToUpper(d.Config.SocietyID)
	md.RecordCreationDate = now.UTC().Format("2006-01-02T15:04:05Z")
	md.RecordChangeDate = md.RecordCreationDate
	md.DepositDoi = models.DoiRecord{Status: models.DoiUnreserved}

	scopeKey, scopeName := depositScope(md, submitter)
	if err := d.Guard.Check(md.Title, md.Genre, scopeKey, scopeName); err != nil {
		d.FailuresTotal.Inc()
		return nil, err
	}

	// Taxonomie-Terme vor der Pipeline auflösen; unbekannte Subjects
	// fallen raus, fehlende Keywords werden angelegt.
	md.SubjectIDs, md.Subjects, err = d.Records.ResolveSubjects(md.Subjects)
	if err != nil {
		d.FailuresTotal.Inc()
		return nil, err
	}
	md.KeywordIDs, err = d.Records.ResolveKeywords(md.Keywords)
	if err != nil {
		d.FailuresTotal.Inc()
		return nil, err
	}

	status, postDate, err := d.resolveStatus(md, submitter, now)
	if err != nil {
		d.FailuresTotal.Inc()
		return nil, err
	}

	log := d.Logger.With(zap.String("submitter", submitter), zap.String("title", md.Title))

	var (
		pair         models.IdentifierPair
		docs         *ComposedDocuments
		fullText     string
		needsReindex bool
		parentRec    *models.DepositRecord
		childRec     *models.DepositRecord
		attachments  []models.FileAttachment
	)

	steps := []sagaStep{
		{
			name:     "allocate identifier pair",
			required: true,
			run: func(ctx context.Context) error {
				var err error
				pair, err = d.Pids.AllocatePair(d.Config.PidNamespace)
				if err != nil {
					return err
				}
				md.Pid = pair.AggregatorPid
				md.Handle = FallbackHandle(d.Config.SiteURL, pair.AggregatorPid)
				md.RecordIdentifier = pair.AggregatorPid
				return nil
			},
			// Vergebene Ids werden bewusst nie zurückgegeben.
		},
		{
			name: "reserve doi",
			run: func(ctx context.Context) error {
				if d.Registry == nil {
					return &RegistryError{Op: "reserve", Err: errors.New("registry is not configured")}
				}
				doi, err := d.Registry.Reserve(BuildDoiCandidate(d.Config.SiteURL, md, pair.AggregatorPid))
				if err != nil {
					// Der Deposit läuft mit dem Permalink weiter.
					return err
				}
				md.DepositDoi = models.DoiRecord{Status: models.DoiReserved, Value: doi}
				return nil
			},
		},
		{
			name:     "compose documents",
			required: true,
			run: func(ctx context.Context) error {
				var err error
				docs, err = d.Composer.ComposeAll(md, pair, sub.FileType, sub.FileName, d.Config.CollectionPid)
				return err
			},
		},
		{
			name:     "create primary record",
			required: true,
			run: func(ctx context.Context) error {
				parentRec = &models.DepositRecord{
					Pid:       pair.AggregatorPid,
					Title:     md.Title,
					Excerpt:   excerpt(md.Abstract),
					Status:    status,
					PostDate:  postDate,
					Submitter: submitter,
					Genre:     md.Genre,
					ScopeKey:  scopeKey,
					FileName:  sub.FileName,
					FileType:  sub.FileType,
					FileSize:  sub.FileSize,
					DoiStatus: string(md.DepositDoi.Status),
					DoiValue:  md.DepositDoi.Value,
				}
				if raw, err := json.Marshal(md); err == nil {
					parentRec.MetadataJSON = string(raw)
				}
				return d.Records.CreateRecord(parentRec)
			},
			compensate: func(ctx context.Context) {
				if err := d.Records.DeleteRecordByPid(pair.AggregatorPid); err != nil {
					log.Error("Kompensation des Primärrecords fehlgeschlagen", zap.Error(err))
				}
			},
		},
		{
			name:     "create resource record",
			required: true,
			run: func(ctx context.Context) error {
				childRec = &models.DepositRecord{
					Pid:       pair.ResourcePid,
					Title:     sub.FileName,
					Status:    status,
					Submitter: submitter,
					ParentID:  &parentRec.ID,
					FileName:  sub.FileName,
					FileType:  sub.FileType,
					FileSize:  sub.FileSize,
				}
				return d.Records.CreateRecord(childRec)
			},
			compensate: func(ctx context.Context) {
				if err := d.Records.DeleteRecordByPid(pair.ResourcePid); err != nil {
					log.Error("Kompensation des Resource-Records fehlgeschlagen", zap.Error(err))
				}
			},
		},
		{
			name: "extract text",
			run: func(ctx context.Context) error {
				if d.Extractor == nil {
					return nil
				}
				if !d.Extractor.Eligible(sub.FileType, sub.FileSize) {
					// Große Text-Deposits holt der Hintergrund-Sweep nach.
					if textualFiletype(sub.FileType) && sub.FileSize >= d.Config.ExtractMaxSize {
						needsReindex = true
					}
					return nil
				}
				var err error
				fullText, err = d.Extractor.ExtractText(sub.Content, sub.FileType)
				return err
			},
		},
		{
			name:     "index deposit",
			required: true,
			run: func(ctx context.Context) error {
				err := d.Index.IndexDeposit(md, fullText)
				if err == nil {
					return nil
				}
				var ie *IndexingError
				if errors.As(err, &ie) && ie.Transient {
					// Genau ein Wiederholungsversuch, ohne Volltext.
					log.Warn("Transienter Index-Fehler, Retry Metadata-only", zap.Error(err))
					if retryErr := d.Index.IndexDeposit(md, ""); retryErr != nil {
						return retryErr
					}
					if fullText != "" {
						needsReindex = true
					}
					return nil
				}
				return err
			},
			compensate: func(ctx context.Context) {
				if err := d.Index.Delete(pair.AggregatorPid); err != nil {
					log.Warn("Index-Kompensation fehlgeschlagen", zap.Error(err))
				}
			},
		},
		{
			name: "ingest repository objects",
			run: func(ctx context.Context) error {
				var err error
				attachments, err = d.ingest(ctx, sub, pair, docs)
				return err
			},
			// Kein Rollback im Repository; verwaiste Objekte sind das
			// dokumentierte Verhalten.
		},
	}

	if err := runSaga(ctx, log, steps); err != nil {
		d.FailuresTotal.Inc()
		return nil, err
	}

	d.postCommit(md, parentRec, status, needsReindex, attachments, log)
	d.DepositsTotal.Inc()

	result := &DepositResult{
		Pid:         pair.AggregatorPid,
		ResourcePid: pair.ResourcePid,
		Status:      status,
		Handle:      md.Handle,
		Doi:         md.DepositDoi.Value,
	}
	if docs != nil {
		result.Warnings = docs.Warnings
	}
	log.Info("Deposit registriert.", zap.String("pid", result.Pid), zap.String("status", status))
	return result, nil
}

// ingest nimmt beide Objekt-Wrapper ins Repository auf und hängt die
// Datei-Datastreams an.
func (d *DepositService) ingest(ctx context.Context, sub *models.DepositSubmission, pair models.IdentifierPair, docs *ComposedDocuments) ([]models.FileAttachment, error) {
	if d.Repository == nil {
		return nil, &IngestError{Pid: pair.AggregatorPid, Err: errors.New("repository store is not configured")}
	}
	if _, err := d.Repository.IngestObject(ctx, pair.AggregatorPid, models.KindAggregator, docs.AggregatorFOXML); err != nil {
		return nil, err
	}
	if _, err := d.Repository.AttachDatastream(ctx, pair.AggregatorPid, "descMetadata", "MODS metadata", "text/xml", []byte(docs.MODS)); err != nil {
		return nil, err
	}
	if _, err := d.Repository.IngestObject(ctx, pair.ResourcePid, models.KindResource, docs.ResourceFOXML); err != nil {
		return nil, err
	}

	attachment := models.FileAttachment{
		Pid:          pair.ResourcePid,
		DatastreamID: "CONTENT",
		Filename:     sub.FileName,
		Filetype:     sub.FileType,
		Filesize:     sub.FileSize,
	}
	if _, err := d.Repository.AttachDatastream(ctx, pair.ResourcePid, "CONTENT", sub.FileName, sub.FileType, sub.Content); err != nil {
		return nil, err
	}
	if len(sub.Thumb) > 0 {
		if _, err := d.Repository.AttachDatastream(ctx, pair.ResourcePid, "THUMBNAIL", sub.ThumbName, sub.ThumbType, sub.Thumb); err != nil {
			return nil, err
		}
		attachment.ThumbDatastreamID = "THUMBNAIL"
		attachment.ThumbFilename = sub.ThumbName
	}
	return []models.FileAttachment{attachment}, nil
}

// postCommit führt die nachgelagerten Effekte aus. Fehler werden
// geloggt, der Deposit gilt bereits als registriert.
func (d *DepositService) postCommit(md *models.NormalizedMetadata, parentRec *models.DepositRecord,
	status string, needsReindex bool, attachments []models.FileAttachment, log *zap.Logger) {

	// Activity-Eintrag; der Admin-Login bekommt keinen.
	if md.Submitter != d.Config.AdminLogin {
		if err := d.Activity.RecordActivity(md.Submitter, parentRec.ID, parentRec.Excerpt, md.Handle); err != nil {
			log.Warn("Activity-Eintrag fehlgeschlagen", zap.Error(err))
		}
	}

	// DOI veröffentlichen; bei Fehler bleibt sie reserved.
	if md.DepositDoi.Status == models.DoiReserved && d.Registry != nil {
		if err := d.Registry.Publish(md.DepositDoi.Value, md.Handle); err != nil {
			log.Warn("DOI-Veröffentlichung fehlgeschlagen, bleibt reserviert",
				zap.String("doi", md.DepositDoi.Value), zap.Error(err))
		} else {
			md.DepositDoi.Status = models.DoiPublished
		}
	}

	// Review-Fan-out für provisorische Deposits.
	if status == models.StatusPending {
		sent, err := d.Activity.NotifyReviewers(d.Config.ReviewGroupSlug, parentRec.ID, md.Submitter)
		if err != nil {
			log.Warn("Review-Fan-out fehlgeschlagen", zap.Error(err))
		} else {
			log.Info("Reviewer benachrichtigt.", zap.Int("sent", sent))
		}
	}

	if err := d.Activity.InvalidateAuthorUnis(md.AuthorUnis()); err != nil {
		log.Warn("Cache-Invalidierung fehlgeschlagen", zap.Error(err))
	}

	// Finalen Zustand am Primärrecord persistieren.
	parentRec.DoiStatus = string(md.DepositDoi.Status)
	parentRec.DoiValue = md.DepositDoi.Value
	parentRec.NeedsReindex = needsReindex
	if raw, err := json.Marshal(md); err == nil {
		parentRec.MetadataJSON = string(raw)
	}
	if raw, err := json.Marshal(models.FileMetadata{Files: attachments}); err == nil {
		parentRec.FileMetadataJSON = string(raw)
	}
	if err := d.Records.UpdateRecord(parentRec); err != nil {
		log.Warn("Finales Record-Update fehlgeschlagen", zap.Error(err))
	}
}

// resolveStatus wendet die festen Status-Regeln an.
func (d *DepositService) resolveStatus(md *models.NormalizedMetadata, submitter string, now time.Time) (string, *time.Time, error) {
	if submitter == d.Config.AdminLogin {
		return models.StatusPublish, nil, nil
	}
	if md.Embargoed {
		end, err := time.Parse("01/02/2006", md.EmbargoEndDate)
		if err != nil {
			return "", nil, &ValidationError{Field: "embargo_length", Reason: "is not a recognizable interval"}
		}
		return models.StatusFuture, &end, nil
	}
	if d.Config.SocietyID == "hc" {
		single, err := d.Records.HasSingleMemberType(submitter, "hc")
		if err != nil {
			return "", nil, err
		}
		if single {
			has, err := d.Records.HasDeposits(submitter)
			if err != nil {
				return "", nil, err
			}
			if !has {
				return models.StatusPending, nil, nil
			}
		}
	}
	return models.StatusDraft, nil, nil
}

// depositScope bestimmt den Duplicate-Scope: die einreichende Gruppe
// bzw. sonst der Submitter selbst.
func depositScope(md *models.NormalizedMetadata, submitter string) (key, name string) {
	if md.CommitteeDeposit {
		for _, a := range md.Authors {
			if a.Role == models.RoleCreator && a.Uni != "" {
				return a.Uni, a.Fullname
			}
		}
	}
	return submitter, submitter
}

// excerpt kürzt den Abstract für Feed und Record-Vorschau.
func excerpt(abstract string) string {
	const limit = 250
	if len(abstract) <= limit {
		return abstract
	}
	cut := abstract[:limit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}

// textualFiletype: alles außer Audio, Bild und Video gilt als Text.
func textualFiletype(filetype string) bool {
	for _, prefix := range []string{"audio/", "image/", "video/"} {
		if strings.HasPrefix(filetype, prefix) {
			return false
		}
	}
	return true
}
