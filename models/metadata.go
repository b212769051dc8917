package models

// AuthorRole ist die Rolle eines Beitragenden an einem Deposit.
type AuthorRole string

const (
	RoleCreator    AuthorRole = "creator"
	RoleAuthor     AuthorRole = "author"
	RoleEditor     AuthorRole = "editor"
	RoleTranslator AuthorRole = "translator"
	RoleSubmitter  AuthorRole = "submitter"
)

// CreatorRoles sind die Rollen, die in die DOI-Creator-Liste eingehen.
var CreatorRoles = map[AuthorRole]bool{
	RoleCreator:    true,
	RoleAuthor:     true,
	RoleEditor:     true,
	RoleTranslator: true,
}

// AuthorEntry repräsentiert einen Beitragenden in der normalisierten Metadata.
type AuthorEntry struct {
	Fullname    string     `json:"fullname"`
	Given       string     `json:"given"`
	Family      string     `json:"family"`
	Uni         string     `json:"uni"`
	Role        AuthorRole `json:"role"`
	Affiliation string     `json:"affiliation"`
}

// PublicationVariant bestimmt, welcher Feldsatz für die Publikation gilt.
type PublicationVariant string

const (
	PubBook               PublicationVariant = "book"
	PubBookChapter        PublicationVariant = "book-chapter"
	PubBookReview         PublicationVariant = "book-review"
	PubBookSection        PublicationVariant = "book-section"
	PubJournalArticle     PublicationVariant = "journal-article"
	PubMagazineSection    PublicationVariant = "magazine-section"
	PubMonograph          PublicationVariant = "monograph"
	PubNewspaperArticle   PublicationVariant = "newspaper-article"
	PubOnlinePublication  PublicationVariant = "online-publication"
	PubPodcast            PublicationVariant = "podcast"
	PubProceedingsArticle PublicationVariant = "proceedings-article"
	PubNone               PublicationVariant = "none"
)

// KnownVariants listet alle gültigen Publikationstypen auf.
var KnownVariants = map[PublicationVariant]bool{
	PubBook: true, PubBookChapter: true, PubBookReview: true,
	PubBookSection: true, PubJournalArticle: true, PubMagazineSection: true,
	PubMonograph: true, PubNewspaperArticle: true, PubOnlinePublication: true,
	PubPodcast: true, PubProceedingsArticle: true, PubNone: true,
}

// DoiStatus beschreibt den Lebenszyklus einer DOI-Reservierung.
type DoiStatus string

const (
	DoiUnreserved DoiStatus = "unreserved"
	DoiReserved   DoiStatus = "reserved"
	DoiPublished  DoiStatus = "published"
)

// DoiRecord hält den Zustand der DOI eines Deposits.
type DoiRecord struct {
	Status DoiStatus `json:"status"`
	Value  string    `json:"value"`
}

// IdentifierPair sind die zwei in einem Block vergebenen Objekt-Pids.
// Index 0 ist immer der Aggregator, Index 1 die Resource.
type IdentifierPair struct {
	AggregatorPid string `json:"aggregator_pid"`
	ResourcePid   string `json:"resource_pid"`
}

// ObjectKind unterscheidet Aggregator- und Resource-Objekte im Repository.
type ObjectKind string

const (
	KindAggregator ObjectKind = "aggregator"
	KindResource   ObjectKind = "resource"
)

// DatastreamRef beschreibt einen benannten Byte-Anhang an einem Repository-Objekt.
type DatastreamRef struct {
	ID       string `json:"datastream_id"`
	Label    string `json:"label"`
	MimeType string `json:"mime_type"`
	Location string `json:"location"`
}

// RepositoryObjectDescriptor beschreibt ein ins Repository aufgenommenes Objekt.
type RepositoryObjectDescriptor struct {
	Pid         string          `json:"pid"`
	Kind        ObjectKind      `json:"kind"`
	Datastreams []DatastreamRef `json:"datastreams"`
}

// NormalizedMetadata ist der kanonische, getypte Metadatensatz eines Deposits.
// Nach der Normalisierung unveränderlich, bis auf die spätere Anreicherung
// mit Taxonomie-Term-Ids und den Record-Bezügen.
type NormalizedMetadata struct {
	Pid               string `json:"pid"`
	Title             string `json:"title"`
	TitleUnchanged    string `json:"title_unchanged"`
	Abstract          string `json:"abstract"`
	AbstractUnchanged string `json:"abstract_unchanged"`
	Genre             string `json:"genre"`
	Notes             string `json:"notes,omitempty"`
	Language          string `json:"language,omitempty"`
	TypeOfResource    string `json:"type_of_resource,omitempty"`
	TypeOfLicense     string `json:"type_of_license,omitempty"`

	CommitteeDeposit bool   `json:"committee_deposit"`
	CommitteeID      uint   `json:"committee_id,omitempty"`
	Organization     string `json:"organization,omitempty"`
	Institution      string `json:"institution,omitempty"`

	Authors []AuthorEntry `json:"authors"`

	Groups     []string `json:"group,omitempty"`
	GroupIDs   []uint   `json:"group_ids,omitempty"`
	Subjects   []string `json:"subject,omitempty"`
	SubjectIDs []uint   `json:"subject_ids,omitempty"`
	Keywords   []string `json:"keyword,omitempty"`
	KeywordIDs []uint   `json:"keyword_ids,omitempty"`

	PublicationType  PublicationVariant `json:"publication_type"`
	Publisher        string             `json:"publisher,omitempty"`
	Date             string             `json:"date,omitempty"`
	DateIssued       string             `json:"date_issued"`
	Edition          string             `json:"edition,omitempty"`
	Volume           string             `json:"volume,omitempty"`
	Issue            string             `json:"issue,omitempty"`
	BookJournalTitle string             `json:"book_journal_title,omitempty"`
	BookAuthor       string             `json:"book_author,omitempty"`
	Chapter          string             `json:"chapter,omitempty"`
	StartPage        string             `json:"start_page,omitempty"`
	EndPage          string             `json:"end_page,omitempty"`
	ISBN             string             `json:"isbn,omitempty"`
	ISSN             string             `json:"issn,omitempty"`
	DOI              string             `json:"doi,omitempty"`
	URL              string             `json:"url,omitempty"`

	ConferenceTitle        string `json:"conference_title,omitempty"`
	ConferenceOrganization string `json:"conference_organization,omitempty"`
	ConferenceLocation     string `json:"conference_location,omitempty"`
	ConferenceDate         string `json:"conference_date,omitempty"`
	MeetingTitle           string `json:"meeting_title,omitempty"`
	MeetingOrganization    string `json:"meeting_organization,omitempty"`
	MeetingLocation        string `json:"meeting_location,omitempty"`
	MeetingDate            string `json:"meeting_date,omitempty"`

	Embargoed      bool   `json:"embargoed"`
	EmbargoEndDate string `json:"embargo_end_date,omitempty"`

	// DOI-Lebenszyklus bzw. Fallback-Permalink.
	Handle     string    `json:"handle,omitempty"`
	DepositDoi DoiRecord `json:"deposit_doi"`

	// Record-Bezüge, gesetzt sobald der durable Record existiert.
	Submitter           string `json:"submitter"`
	SocietyID           string `json:"society_id"`
	MemberOf            string `json:"member_of,omitempty"`
	RecordContentSource string `json:"record_content_source"`
	RecordCreationDate  string `json:"record_creation_date"`
	RecordChangeDate    string `json:"record_change_date"`
	RecordIdentifier    string `json:"record_identifier,omitempty"`
}

// CreatorList gibt die Namen aller Beitragenden mit Creator-Rollen zurück,
// in Autorenreihenfolge.
func (m *NormalizedMetadata) CreatorList() []string {
	var creators []string
	for _, a := range m.Authors {
		if CreatorRoles[a.Role] && a.Fullname != "" {
			creators = append(creators, a.Fullname)
		}
	}
	return creators
}

// AuthorUnis gibt die nicht-leeren Unis aller Autoren zurück (Cache-Keys).
func (m *NormalizedMetadata) AuthorUnis() []string {
	var unis []string
	for _, a := range m.Authors {
		if a.Uni != "" {
			unis = append(unis, a.Uni)
		}
	}
	return unis
}
