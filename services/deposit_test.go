package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"commons-core/config"
	"commons-core/models"
)

type fakeGuard struct{ err error }

func (f *fakeGuard) Check(title, genre, scopeKey, scopeName string) error { return f.err }

type fakePids struct{ next int }

func (f *fakePids) AllocatePair(namespace string) (models.IdentifierPair, error) {
	f.next += 2
	return models.IdentifierPair{
		AggregatorPid: namespace + ":" + strconv.Itoa(f.next-1),
		ResourcePid:   namespace + ":" + strconv.Itoa(f.next),
	}, nil
}

type fakeRecords struct {
	created     []*models.DepositRecord
	updated     []*models.DepositRecord
	deleted     []string
	nextID      uint
	hasDeposits bool
	singleHC    bool
}

func (f *fakeRecords) CreateRecord(rec *models.DepositRecord) error {
	f.nextID++
	rec.ID = f.nextID
	rec.CreatedAt = time.Now()
	f.created = append(f.created, rec)
	return nil
}

func (f *fakeRecords) UpdateRecord(rec *models.DepositRecord) error {
	f.updated = append(f.updated, rec)
	return nil
}

func (f *fakeRecords) DeleteRecordByPid(pid string) error {
	f.deleted = append(f.deleted, pid)
	return nil
}

func (f *fakeRecords) HasDeposits(login string) (bool, error) { return f.hasDeposits, nil }

func (f *fakeRecords) HasSingleMemberType(login, memberType string) (bool, error) {
	return f.singleHC, nil
}

func (f *fakeRecords) ResolveSubjects(names []string) ([]uint, []string, error) {
	ids := make([]uint, len(names))
	for i := range names {
		ids[i] = uint(i + 1)
	}
	return ids, names, nil
}

func (f *fakeRecords) ResolveKeywords(names []string) ([]uint, error) {
	ids := make([]uint, len(names))
	for i := range names {
		ids[i] = uint(i + 1)
	}
	return ids, nil
}

type fakeActivity struct {
	activities  []string
	notified    int
	invalidated []string
}

func (f *fakeActivity) RecordActivity(login string, recordID uint, excerpt, link string) error {
	f.activities = append(f.activities, login)
	return nil
}

func (f *fakeActivity) NotifyReviewers(groupSlug string, itemID uint, submitter string) (int, error) {
	f.notified++
	return 3, nil
}

func (f *fakeActivity) InvalidateAuthorUnis(unis []string) error {
	f.invalidated = append(f.invalidated, unis...)
	return nil
}

type fakeIndex struct {
	errs      []error
	fullTexts []string
	deleted   []string
}

func (f *fakeIndex) IndexDeposit(md *models.NormalizedMetadata, fullText string) error {
	f.fullTexts = append(f.fullTexts, fullText)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeIndex) Delete(pid string) error {
	f.deleted = append(f.deleted, pid)
	return nil
}

type fakeRepository struct {
	ingested []string
	attached []string
	err      error
}

func (f *fakeRepository) IngestObject(ctx context.Context, pid string, kind models.ObjectKind, foxml string) (*models.RepositoryObjectDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ingested = append(f.ingested, pid)
	return &models.RepositoryObjectDescriptor{Pid: pid, Kind: kind}, nil
}

func (f *fakeRepository) AttachDatastream(ctx context.Context, pid, dsid, label, mimeType string, data []byte) (*models.DatastreamRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.attached = append(f.attached, pid+"/"+dsid)
	return &models.DatastreamRef{ID: dsid, Label: label, MimeType: mimeType}, nil
}

type fakeRegistry struct {
	reserveErr error
	publishErr error
	published  []string
}

func (f *fakeRegistry) Reserve(candidate DoiCandidate) (string, error) {
	if f.reserveErr != nil {
		return "", f.reserveErr
	}
	return "doi:10.17613/test-1", nil
}

func (f *fakeRegistry) Publish(doi, target string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, doi)
	return nil
}

type fakeExtractor struct {
	eligible bool
	text     string
	err      error
}

func (f *fakeExtractor) Eligible(filetype string, filesize int64) bool { return f.eligible }

func (f *fakeExtractor) ExtractText(content []byte, filetype string) (string, error) {
	return f.text, f.err
}

type depositFixture struct {
	service    *DepositService
	records    *fakeRecords
	activity   *fakeActivity
	index      *fakeIndex
	repository *fakeRepository
	registry   *fakeRegistry
	extractor  *fakeExtractor
}

func newDepositFixture(t *testing.T) *depositFixture {
	t.Helper()
	cfg := &config.Config{
		SiteURL:         "https://example.org",
		SocietyID:       "hc",
		PidNamespace:    "hc",
		CollectionPid:   "hccollection:1",
		AdminLogin:      "hcadmin",
		ExtractMaxSize:  1000000,
		ReviewGroupSlug: "provisional-deposit-review",
	}
	members := &fakeMembers{
		byLogin: map[string]*models.Member{
			"mwilson": {Login: "mwilson", DisplayName: "Mary Wilson", FirstName: "Mary",
				LastName: "Wilson", Affiliation: "Example University", MemberTypes: "hc"},
			"hcadmin": {Login: "hcadmin", DisplayName: "Site Admin", FirstName: "Site",
				LastName: "Admin", MemberTypes: "hc,staff"},
		},
		byName: map[string]*models.Member{},
	}
	groups := &fakeGroups{byID: map[uint]*models.Group{}}

	fx := &depositFixture{
		records:    &fakeRecords{},
		activity:   &fakeActivity{},
		index:      &fakeIndex{},
		repository: &fakeRepository{},
		registry:   &fakeRegistry{},
		extractor:  &fakeExtractor{eligible: true, text: "extracted words"},
	}
	fx.service = NewDepositService(cfg,
		NewMetadataNormalizer(cfg, members, groups, zap.NewNop()),
		&fakeGuard{}, &fakePids{}, NewDocumentComposer(zap.NewNop()),
		fx.records, fx.activity, fx.index, fx.repository, fx.registry, fx.extractor,
		zap.NewNop(),
		prometheus.NewCounter(prometheus.CounterOpts{Name: "test_deposits_total"}),
		prometheus.NewCounter(prometheus.CounterOpts{Name: "test_failures_total"}))
	return fx
}

func depositSubmission() *models.DepositSubmission {
	return &models.DepositSubmission{
		Title:      "A Study of Things",
		Abstract:   "An abstract.",
		Genre:      "Article",
		AuthorUni:  "mwilson",
		AuthorRole: "author",
		FileName:   "study.pdf",
		FileType:   "application/pdf",
		FileSize:   1024,
		Content:    []byte("%PDF-1.4 ..."),
	}
}

func TestDepositHappyPath(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true

	result, err := fx.service.Deposit(context.Background(), depositSubmission())
	require.NoError(t, err)

	assert.Equal(t, "hc:1", result.Pid)
	assert.Equal(t, "hc:2", result.ResourcePid)
	assert.Equal(t, models.StatusDraft, result.Status)
	assert.Equal(t, "https://example.org/deposits/item/hc:1/", result.Handle)
	assert.Equal(t, "doi:10.17613/test-1", result.Doi)

	// Primärrecord und Resource-Record, verknüpft über ParentID.
	require.Len(t, fx.records.created, 2)
	parent, child := fx.records.created[0], fx.records.created[1]
	assert.Equal(t, "hc:1", parent.Pid)
	assert.Equal(t, "hc:2", child.Pid)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
	assert.Empty(t, fx.records.deleted)

	// Index mit Volltext, Repository-Ingest für beide Objekte.
	require.Len(t, fx.index.fullTexts, 1)
	assert.Equal(t, "extracted words", fx.index.fullTexts[0])
	assert.Equal(t, []string{"hc:1", "hc:2"}, fx.repository.ingested)
	assert.Contains(t, fx.repository.attached, "hc:2/CONTENT")
	assert.Contains(t, fx.repository.attached, "hc:1/descMetadata")

	// Post-Commit: Activity, DOI-Publish, Cache-Invalidierung.
	assert.Equal(t, []string{"mwilson"}, fx.activity.activities)
	assert.Equal(t, []string{"doi:10.17613/test-1"}, fx.registry.published)
	assert.Contains(t, fx.activity.invalidated, "mwilson")

	require.NotEmpty(t, fx.records.updated)
	final := fx.records.updated[len(fx.records.updated)-1]
	assert.Equal(t, string(models.DoiPublished), final.DoiStatus)
	assert.False(t, final.NeedsReindex)
}

func TestDepositPermanentIndexFailureRollsBack(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true
	fx.index.errs = []error{&IndexingError{Transient: false, Err: errors.New("schema mismatch")}}

	_, err := fx.service.Deposit(context.Background(), depositSubmission())
	require.Error(t, err)

	// Beide Records kompensiert, in umgekehrter Reihenfolge.
	assert.Equal(t, []string{"hc:2", "hc:1"}, fx.records.deleted)
	// Kein zweiter Index-Versuch bei permanenten Fehlern.
	assert.Len(t, fx.index.fullTexts, 1)
	// Post-Commit-Effekte bleiben aus.
	assert.Empty(t, fx.activity.activities)
	assert.Empty(t, fx.registry.published)
}

func TestDepositTransientIndexFailureRetriesMetadataOnly(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true
	fx.index.errs = []error{&IndexingError{Transient: true, Err: errors.New("timeout")}}

	result, err := fx.service.Deposit(context.Background(), depositSubmission())
	require.NoError(t, err)

	// Genau ein Retry, ohne Volltext.
	require.Len(t, fx.index.fullTexts, 2)
	assert.Equal(t, "extracted words", fx.index.fullTexts[0])
	assert.Empty(t, fx.index.fullTexts[1])
	assert.Empty(t, fx.records.deleted)

	// Der Volltext wird im Hintergrund nachgeholt.
	final := fx.records.updated[len(fx.records.updated)-1]
	assert.True(t, final.NeedsReindex)
	assert.Equal(t, models.StatusDraft, result.Status)
}

func TestDepositTransientThenFailingRetryAborts(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true
	fx.index.errs = []error{
		&IndexingError{Transient: true, Err: errors.New("timeout")},
		&IndexingError{Transient: true, Err: errors.New("timeout again")},
	}

	_, err := fx.service.Deposit(context.Background(), depositSubmission())
	require.Error(t, err)
	assert.Equal(t, []string{"hc:2", "hc:1"}, fx.records.deleted)
}

func TestDepositDoiReserveFailureFallsBackToHandle(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true
	fx.registry.reserveErr = &RegistryError{Op: "reserve", Err: errors.New("registry down")}

	result, err := fx.service.Deposit(context.Background(), depositSubmission())
	require.NoError(t, err)

	assert.Empty(t, result.Doi)
	assert.Equal(t, "https://example.org/deposits/item/hc:1/", result.Handle)
	assert.Empty(t, fx.registry.published)

	final := fx.records.updated[len(fx.records.updated)-1]
	assert.Equal(t, string(models.DoiUnreserved), final.DoiStatus)
}

func TestDepositDoiPublishFailureStaysReserved(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true
	fx.registry.publishErr = &RegistryError{Op: "publish", Err: errors.New("registry down")}

	result, err := fx.service.Deposit(context.Background(), depositSubmission())
	require.NoError(t, err)
	assert.Equal(t, "doi:10.17613/test-1", result.Doi)

	final := fx.records.updated[len(fx.records.updated)-1]
	assert.Equal(t, string(models.DoiReserved), final.DoiStatus)
}

func TestDepositIngestFailureDoesNotRollBack(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true
	fx.repository.err = errors.New("repository unavailable")

	result, err := fx.service.Deposit(context.Background(), depositSubmission())
	require.NoError(t, err)

	// Der Deposit gilt als registriert, nichts wird kompensiert.
	assert.Equal(t, "hc:1", result.Pid)
	assert.Empty(t, fx.records.deleted)
	assert.Len(t, fx.records.created, 2)
}

func TestDepositFirstTimeSingleTypeMemberIsPending(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = false
	fx.records.singleHC = true

	result, err := fx.service.Deposit(context.Background(), depositSubmission())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, result.Status)
	assert.Equal(t, 1, fx.activity.notified)
}

func TestDepositAdminPublishesWithoutActivity(t *testing.T) {
	fx := newDepositFixture(t)

	sub := depositSubmission()
	sub.AuthorUni = "hcadmin"
	result, err := fx.service.Deposit(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPublish, result.Status)
	assert.Empty(t, fx.activity.activities)
	assert.Zero(t, fx.activity.notified)
}

func TestDepositEmbargoSetsFutureStatus(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true

	sub := depositSubmission()
	sub.Embargoed = true
	sub.EmbargoLength = "6 months"
	result, err := fx.service.Deposit(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, models.StatusFuture, result.Status)
	parent := fx.records.created[0]
	require.NotNil(t, parent.PostDate)
	assert.True(t, parent.PostDate.After(time.Now()))
}

func TestDepositDuplicateAbortsBeforeAnyState(t *testing.T) {
	fx := newDepositFixture(t)
	fx.service.Guard = &fakeGuard{err: &DuplicateError{
		ExistingPid: "hc:77", ExistingTitle: "A Study of Things", ScopeName: "mwilson"}}

	_, err := fx.service.Deposit(context.Background(), depositSubmission())
	var dupErr *DuplicateError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "hc:77", dupErr.ExistingPid)

	assert.Empty(t, fx.records.created)
	assert.Empty(t, fx.index.fullTexts)
	assert.Empty(t, fx.repository.ingested)
}

func TestDepositOversizedTextGetsQueuedForReindex(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true
	fx.extractor.eligible = false

	sub := depositSubmission()
	sub.FileSize = 5000000
	_, err := fx.service.Deposit(context.Background(), sub)
	require.NoError(t, err)

	// Metadata-only indiziert, Volltext kommt über den Sweep.
	require.Len(t, fx.index.fullTexts, 1)
	assert.Empty(t, fx.index.fullTexts[0])
	final := fx.records.updated[len(fx.records.updated)-1]
	assert.True(t, final.NeedsReindex)
}

func TestDepositAudioFileSkipsExtractionQuietly(t *testing.T) {
	fx := newDepositFixture(t)
	fx.records.hasDeposits = true
	fx.extractor.eligible = false

	sub := depositSubmission()
	sub.FileType = "audio/mpeg"
	_, err := fx.service.Deposit(context.Background(), sub)
	require.NoError(t, err)

	final := fx.records.updated[len(fx.records.updated)-1]
	assert.False(t, final.NeedsReindex)
}
