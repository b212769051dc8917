package services

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"commons-core/config"
	"commons-core/models"
)

// MemberDirectory ist das bekannte Mitgliederverzeichnis für den
// Namensabgleich von Co-Autoren.
type MemberDirectory interface {
	// FindByLogin gibt nil zurück, wenn kein Mitglied existiert.
	FindByLogin(login string) (*models.Member, error)
	// FindByName gleicht Vor- und Nachname ab; nil, wenn kein Treffer.
	FindByName(first, last string) (*models.Member, error)
}

// GroupDirectory löst Gruppen-Ids in Gruppen auf.
type GroupDirectory interface {
	GetGroup(id uint) (*models.Group, error)
}

// Genres, die eine Institution verlangen.
var institutionGenres = map[string]bool{
	"Dissertation":     true,
	"Technical report": true,
	"Thesis":           true,
	"White paper":      true,
}

var (
	tagRE        = regexp.MustCompile(`<[^>]*>`)
	allowedTagRE = regexp.MustCompile(`(?i)</?(?:b|em|strong)>`)
)

// stripAllTags entfernt sämtliches Markup aus einem Eingabefeld.
func stripAllTags(s string) string {
	return strings.TrimSpace(tagRE.ReplaceAllString(s, ""))
}

// limitedMarkup behält nur b/em/strong, alles andere wird entfernt.
func limitedMarkup(s string) string {
	kept := allowedTagRE.ReplaceAllStringFunc(s, func(tag string) string {
		return "\x00" + tag[1:len(tag)-1] + "\x01"
	})
	kept = tagRE.ReplaceAllString(kept, "")
	kept = strings.ReplaceAll(kept, "\x00", "<")
	kept = strings.ReplaceAll(kept, "\x01", ">")
	return strings.TrimSpace(kept)
}

// MetadataNormalizer bildet die rohe Submission auf den kanonischen,
// getypten Metadatensatz ab.
type MetadataNormalizer struct {
	cfg     *config.Config
	members MemberDirectory
	groups  GroupDirectory
	logger  *zap.Logger
}

// NewMetadataNormalizer erstellt einen neuen MetadataNormalizer.
func NewMetadataNormalizer(cfg *config.Config, members MemberDirectory, groups GroupDirectory, logger *zap.Logger) *MetadataNormalizer {
	return &MetadataNormalizer{cfg: cfg, members: members, groups: groups, logger: logger}
}

// Normalize baut die NormalizedMetadata aus der Submission auf.
// Die Submission wird danach nicht mehr benötigt.
func (n *MetadataNormalizer) Normalize(sub *models.DepositSubmission, now time.Time) (*models.NormalizedMetadata, error) {
	if strings.TrimSpace(sub.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(sub.Genre) == "" {
		return nil, &ValidationError{Field: "genre", Reason: "is required"}
	}
	if sub.FileName == "" {
		return nil, &ValidationError{Field: "file_name", Reason: "is required"}
	}
	if sub.FileSize == 0 && len(sub.Content) == 0 {
		return nil, &ValidationError{Field: "file_size", Reason: "appears to be empty"}
	}

	md := &models.NormalizedMetadata{
		Title:             stripAllTags(sub.Title),
		TitleUnchanged:    limitedMarkup(sub.Title),
		Abstract:          stripAllTags(sub.Abstract),
		AbstractUnchanged: limitedMarkup(sub.Abstract),
		Genre:             strings.TrimSpace(sub.Genre),
		Notes:             stripAllTags(sub.Notes),
		Language:          strings.TrimSpace(sub.Language),
		TypeOfResource:    strings.TrimSpace(sub.ResourceType),
		TypeOfLicense:     strings.TrimSpace(sub.LicenseType),
		CommitteeDeposit:  sub.OnBehalfFlag,
		CommitteeID:       sub.CommitteeID,
	}

	if err := n.assembleAuthors(md, sub); err != nil {
		return nil, err
	}

	// Genre-abhängige Felder.
	if institutionGenres[md.Genre] {
		if inst := strings.TrimSpace(sub.Institution); inst != "" {
			md.Institution = inst
		} else {
			md.Institution = md.Organization
		}
	}
	if md.Genre == "Conference proceeding" || md.Genre == "Conference paper" {
		if sub.Conference != nil {
			md.ConferenceTitle = sub.Conference.Title
			md.ConferenceOrganization = sub.Conference.Organization
			md.ConferenceLocation = sub.Conference.Location
			md.ConferenceDate = sub.Conference.Date
		}
	}
	if md.Genre == "Presentation" {
		if sub.Meeting != nil {
			md.MeetingTitle = sub.Meeting.Title
			md.MeetingOrganization = sub.Meeting.Organization
			md.MeetingLocation = sub.Meeting.Location
			md.MeetingDate = sub.Meeting.Date
		}
	}

	// Gruppen auflösen.
	for _, gid := range sub.GroupIDs {
		group, err := n.groups.GetGroup(gid)
		if err != nil || group == nil {
			n.logger.Warn("Deposit-Gruppe nicht gefunden", zap.Uint("group_id", gid))
			continue
		}
		md.Groups = append(md.Groups, group.Name)
		md.GroupIDs = append(md.GroupIDs, gid)
	}

	for _, s := range sub.Subjects {
		if t := strings.TrimSpace(s); t != "" {
			md.Subjects = append(md.Subjects, t)
		}
	}
	for _, k := range sub.Keywords {
		if t := strings.TrimSpace(k); t != "" {
			md.Keywords = append(md.Keywords, t)
		}
	}

	n.dispatchPublicationType(md, sub, now)

	md.Embargoed = sub.Embargoed
	if sub.Embargoed {
		end, err := ParseRelativeInterval(sub.EmbargoLength, now)
		if err != nil {
			return nil, err
		}
		md.EmbargoEndDate = end.Format("01/02/2006")
	}

	return md, nil
}

// assembleAuthors baut die Autorenliste auf: zuerst die einreichende
// Gruppe bzw. Person, dann die per Namensabgleich aufgelösten Co-Autoren.
// Abschließend stabil nach Nachname sortiert (case-insensitive).
func (n *MetadataNormalizer) assembleAuthors(md *models.NormalizedMetadata, sub *models.DepositSubmission) error {
	if sub.OnBehalfFlag {
		group, err := n.groups.GetGroup(sub.CommitteeID)
		if err != nil || group == nil {
			return &ValidationError{Field: "committee_id", Reason: "does not name a known group"}
		}
		md.Organization = strings.ToUpper(n.cfg.SocietyID)
		md.Authors = append(md.Authors, models.AuthorEntry{
			Fullname:    group.Name,
			Uni:         group.Slug,
			Role:        models.RoleCreator,
			Affiliation: strings.ToUpper(n.cfg.SocietyID),
		})
	} else if sub.AuthorRole != string(models.RoleSubmitter) {
		submitter, err := n.members.FindByLogin(sub.AuthorUni)
		if err != nil || submitter == nil {
			return &ValidationError{Field: "author_uni", Reason: "does not name a known member"}
		}
		role := models.AuthorRole(sub.AuthorRole)
		if role == "" {
			role = models.RoleAuthor
		}
		md.Organization = submitter.Affiliation
		md.Authors = append(md.Authors, models.AuthorEntry{
			Fullname:    submitter.DisplayName,
			Given:       submitter.FirstName,
			Family:      submitter.LastName,
			Uni:         submitter.Login,
			Role:        role,
			Affiliation: submitter.Affiliation,
		})
	}

	for _, other := range sub.OtherAuthors {
		first := strings.TrimSpace(other.FirstName)
		last := strings.TrimSpace(other.LastName)
		if first == "" || last == "" {
			continue
		}
		entry := models.AuthorEntry{
			Fullname: strings.TrimSpace(first + " " + last),
			Given:    first,
			Family:   last,
			Role:     models.AuthorRole(other.Role),
		}
		match, err := n.members.FindByName(first, last)
		if err == nil && match != nil {
			// Treffer im Verzeichnis: mit Profildaten anreichern.
			entry.Fullname = match.DisplayName
			entry.Given = match.FirstName
			entry.Family = match.LastName
			entry.Uni = match.Login
			entry.Affiliation = match.Affiliation
		}
		md.Authors = append(md.Authors, entry)
	}

	// Stabile Sortierung: gleiche Nachnamen behalten ihre Reihenfolge.
	sort.SliceStable(md.Authors, func(i, j int) bool {
		return strings.ToLower(md.Authors[i].Family) < strings.ToLower(md.Authors[j].Family)
	})

	return nil
}

// dispatchPublicationType wählt anhand des eingereichten Typs genau eine
// Publikationsvariante aus und liest nur deren Feldsatz. Unbekannte oder
// fehlende Typen fallen auf "none" zurück, deren Datum aus dem separaten
// Non-Published-Feld kommt.
func (n *MetadataNormalizer) dispatchPublicationType(md *models.NormalizedMetadata, sub *models.DepositSubmission, now time.Time) {
	variant := models.PublicationVariant(sub.PublicationType)
	if !models.KnownVariants[variant] {
		variant = models.PubNone
	}
	md.PublicationType = variant

	pub := sub.Publication
	if pub == nil {
		pub = &models.PublicationFields{}
	}

	setDate := func(raw string) {
		md.Date = strings.TrimSpace(raw)
		if md.Date != "" {
			md.DateIssued = ResolveYearIssued(md.Date, now)
		} else {
			md.DateIssued = now.Format("2006")
		}
	}

	switch variant {
	case models.PubBook:
		md.Publisher = pub.Publisher
		setDate(pub.PublishDate)
		md.Edition = pub.Edition
		md.Volume = pub.Volume
		md.ISBN = pub.ISBN
		md.DOI = pub.DOI
	case models.PubBookChapter:
		md.Publisher = pub.Publisher
		setDate(pub.PublishDate)
		md.BookJournalTitle = pub.Title
		md.BookAuthor = pub.Author
		md.Chapter = pub.Chapter
		md.StartPage = pub.StartPage
		md.EndPage = pub.EndPage
		md.ISBN = pub.ISBN
		md.DOI = pub.DOI
	case models.PubBookReview:
		md.Publisher = pub.Publisher
		setDate(pub.PublishDate)
		md.DOI = pub.DOI
	case models.PubBookSection:
		md.Publisher = pub.Publisher
		setDate(pub.PublishDate)
		md.BookJournalTitle = pub.Title
		md.BookAuthor = pub.Author
		md.Edition = pub.Edition
		md.StartPage = pub.StartPage
		md.EndPage = pub.EndPage
		md.ISBN = pub.ISBN
		md.DOI = pub.DOI
	case models.PubJournalArticle:
		md.Publisher = pub.Publisher
		setDate(pub.PublishDate)
		md.BookJournalTitle = pub.Title
		md.Volume = pub.Volume
		md.Issue = pub.Issue
		md.StartPage = pub.StartPage
		md.EndPage = pub.EndPage
		md.ISSN = pub.ISSN
		md.DOI = pub.DOI
	case models.PubMagazineSection:
		setDate(pub.PublishDate)
		md.BookJournalTitle = pub.Title
		md.Volume = pub.Volume
		md.StartPage = pub.StartPage
		md.EndPage = pub.EndPage
		md.URL = pub.URL
	case models.PubMonograph:
		md.Publisher = pub.Publisher
		setDate(pub.PublishDate)
		md.ISBN = pub.ISBN
		md.DOI = pub.DOI
	case models.PubNewspaperArticle:
		setDate(pub.PublishDate)
		md.BookJournalTitle = pub.Title
		md.Edition = pub.Edition
		md.Volume = pub.Volume
		md.StartPage = pub.StartPage
		md.EndPage = pub.EndPage
		md.URL = pub.URL
	case models.PubOnlinePublication:
		md.Publisher = pub.Publisher
		setDate(pub.PublishDate)
		md.BookJournalTitle = pub.Title
		md.Edition = pub.Edition
		md.Volume = pub.Volume
		md.URL = pub.URL
	case models.PubPodcast:
		md.Publisher = pub.Publisher
		setDate(pub.PublishDate)
		md.Volume = pub.Volume
		md.URL = pub.URL
	case models.PubProceedingsArticle:
		md.Publisher = pub.Publisher
		setDate(pub.PublishDate)
		md.BookJournalTitle = pub.Title
		md.StartPage = pub.StartPage
		md.EndPage = pub.EndPage
		md.DOI = pub.DOI
	case models.PubNone:
		md.Publisher = ""
		setDate(sub.NonPublishedDate)
	}
}
