package services

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"commons-core/models"
)

// ComposedDocuments bündelt alle für einen Deposit erzeugten Dokumente.
type ComposedDocuments struct {
	AggregatorDC    string
	AggregatorRDF   string
	AggregatorFOXML string
	ResourceDC      string
	ResourceRDF     string
	ResourceFOXML   string
	MODS            string
	// Warnungen aus der Wohlgeformtheits-Prüfung; downstream-Ingest
	// ist dafür zuständig, sie sichtbar zu machen.
	Warnings []string
}

// DocumentComposer erzeugt deterministisch die beschreibenden,
// Beziehungs- und bibliographischen Dokumente aus der normalisierten
// Metadata. Reine Generierung, keine Seiteneffekte.
type DocumentComposer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewDocumentComposer erstellt einen neuen DocumentComposer.
func NewDocumentComposer(logger *zap.Logger) *DocumentComposer {
	return &DocumentComposer{logger: logger, now: time.Now}
}

// escapeMarkup maskiert Markup-Sonderzeichen inklusive Quotes.
func escapeMarkup(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(cleanupUTF8(s))); err != nil {
		return ""
	}
	return b.String()
}

// cleanupUTF8 entfernt ungültige Multi-Byte-Sequenzen (nicht nur
// maskieren) und normalisiert auf NFC.
func cleanupUTF8(s string) string {
	s = strings.ToValidUTF8(s, "")
	normalized, _, err := transform.String(norm.NFC, s)
	if err != nil {
		return s
	}
	return normalized
}

// ComposeAll erzeugt alle Dokumente für einen Deposit.
func (dc *DocumentComposer) ComposeAll(md *models.NormalizedMetadata, pair models.IdentifierPair, filetype, filename, collectionPid string) (*ComposedDocuments, error) {
	if pair.AggregatorPid == "" || pair.ResourcePid == "" {
		return nil, &CompositionError{Document: "identifier pair", Reason: "pid is missing"}
	}

	docs := &ComposedDocuments{}

	aggDC, err := dc.AggregatorDC(pair.AggregatorPid, md.RecordContentSource, "", "")
	if err != nil {
		return nil, err
	}
	docs.AggregatorDC = aggDC

	aggRDF, err := dc.AggregatorRDF(pair.AggregatorPid, collectionPid, false, "ContentAggregator")
	if err != nil {
		return nil, err
	}
	docs.AggregatorRDF = aggRDF

	aggFOXML, warn, err := dc.FOXML(pair.AggregatorPid, "", aggDC, "Active", aggRDF)
	if err != nil {
		return nil, err
	}
	docs.AggregatorFOXML = aggFOXML
	if warn != "" {
		docs.Warnings = append(docs.Warnings, warn)
	}

	resDC, err := dc.ResourceDC(md, pair.ResourcePid, filetype)
	if err != nil {
		return nil, err
	}
	docs.ResourceDC = resDC

	resRDF, err := dc.ResourceRDF(pair.AggregatorPid, pair.ResourcePid, "")
	if err != nil {
		return nil, err
	}
	docs.ResourceRDF = resRDF

	resFOXML, warn, err := dc.FOXML(pair.ResourcePid, filename, resDC, "Active", resRDF)
	if err != nil {
		return nil, err
	}
	docs.ResourceFOXML = resFOXML
	if warn != "" {
		docs.Warnings = append(docs.Warnings, warn)
	}

	mods, err := dc.MODS(md)
	if err != nil {
		return nil, err
	}
	docs.MODS = mods

	return docs, nil
}

// AggregatorDC erzeugt den beschreibenden Dublin-Core-Satz des Aggregators.
func (dc *DocumentComposer) AggregatorDC(pid, creator, title, kind string) (string, error) {
	if pid == "" {
		return "", &CompositionError{Document: "aggregator dc", Reason: "pid is missing"}
	}
	if title == "" {
		title = "Generic Content Aggregator"
	}
	if kind == "" {
		kind = "InteractiveResource"
	}
	return fmt.Sprintf(`<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/"
		xmlns:dc="http://purl.org/dc/elements/1.1/"
		xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
		xsi:schemaLocation="http://www.openarchives.org/OAI/2.0/oai_dc/ http://www.openarchives.org/OAI/2.0/oai_dc.xsd">
	  <dc:identifier>%s</dc:identifier>
	  <dc:creator>%s</dc:creator>
	  <dc:title>%s</dc:title>
	  <dc:type>%s</dc:type>
	</oai_dc:dc>`, escapeMarkup(pid), escapeMarkup(creator), escapeMarkup(title), escapeMarkup(kind)), nil
}

// AggregatorRDF erzeugt den Beziehungsgraphen des Aggregators.
// Die License-Kante wird immer emittiert, auch leer.
func (dc *DocumentComposer) AggregatorRDF(pid, collectionPid string, isCollection bool, model string) (string, error) {
	if pid == "" {
		return "", &CompositionError{Document: "aggregator rdf", Reason: "pid is missing"}
	}
	if model == "" {
		model = "ContentAggregator"
	}

	memberOf := ""
	if collectionPid != "" {
		memberOf = fmt.Sprintf(`<pcdm:memberOf rdf:resource="info:fedora/%s"></pcdm:memberOf>`, escapeMarkup(collectionPid))
	}
	collectionFlag := ""
	if isCollection {
		collectionFlag = `<isCollection xmlns="info:fedora/fedora-system:def/relations-external#">true</isCollection>`
	}

	return fmt.Sprintf(`<rdf:RDF xmlns:fedora-model="info:fedora/fedora-system:def/model#"
		xmlns:ore="http://www.openarchives.org/ore/terms/"
		xmlns:pcdm="http://pcdm.org/models#"
		xmlns:cc="http://creativecommons.org/ns#"
		xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
	  <rdf:Description rdf:about="info:fedora/%s">
		<fedora-model:hasModel rdf:resource="info:fedora/ldpd:%s"></fedora-model:hasModel>
		<rdf:type rdf:resource="http://pcdm.org/models#Object"></rdf:type>
		%s
		%s
		<cc:license rdf:resource="info:fedora/"></cc:license>
	  </rdf:Description>
	</rdf:RDF>`, escapeMarkup(pid), model, collectionFlag, memberOf), nil
}

// ResourceDC erzeugt den beschreibenden Satz des Resource-Objekts.
func (dc *DocumentComposer) ResourceDC(md *models.NormalizedMetadata, pid, filetype string) (string, error) {
	if pid == "" {
		return "", &CompositionError{Document: "resource dc", Reason: "pid is missing"}
	}

	var creators strings.Builder
	for _, a := range md.Authors {
		if (a.Role == models.RoleCreator || a.Role == models.RoleAuthor) && a.Fullname != "" {
			fmt.Fprintf(&creators, "\n\t  <dc:creator>%s</dc:creator>", escapeMarkup(a.Fullname))
		}
	}
	var subjects strings.Builder
	for _, s := range md.Subjects {
		fmt.Fprintf(&subjects, "\n\t  <dc:subject>%s</dc:subject>", escapeMarkup(s))
	}
	publisher := ""
	if md.Publisher != "" {
		publisher = fmt.Sprintf("<dc:publisher>%s</dc:publisher>", escapeMarkup(md.Publisher))
	}
	date := ""
	if md.DateIssued != "" {
		date = fmt.Sprintf(`<dc:date encoding="w3cdtf">%s</dc:date>`, escapeMarkup(md.DateIssued))
	}

	return fmt.Sprintf(`<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/"
		xmlns:dc="http://purl.org/dc/elements/1.1/"
		xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
		xsi:schemaLocation="http://www.openarchives.org/OAI/2.0/oai_dc/ http://www.openarchives.org/OAI/2.0/oai_dc.xsd">
	  <dc:identifier>%s</dc:identifier>%s
	  %s
	  <dc:title>%s</dc:title>
	  <dc:description>%s</dc:description>%s
	  %s
	  <dc:type>%s</dc:type>
	  <dc:format>%s</dc:format>
	</oai_dc:dc>`,
		escapeMarkup(pid), creators.String(), date, escapeMarkup(md.Title),
		escapeMarkup(md.Abstract), subjects.String(), publisher,
		escapeMarkup(md.Genre), escapeMarkup(filetype)), nil
}

// ResourceRDF erzeugt den Beziehungsgraphen des Resource-Objekts:
// die Resource ist Member des Aggregators.
func (dc *DocumentComposer) ResourceRDF(aggregatorPid, resourcePid, collectionPid string) (string, error) {
	if aggregatorPid == "" || resourcePid == "" {
		return "", &CompositionError{Document: "resource rdf", Reason: "pid is missing"}
	}
	collectionMarkup := ""
	if collectionPid != "" {
		collectionMarkup = fmt.Sprintf(`<pcdm:memberOf rdf:resource="info:fedora/%s"></pcdm:memberOf>`, escapeMarkup(collectionPid))
	}
	return fmt.Sprintf(`<rdf:RDF xmlns:fedora-model="info:fedora/fedora-system:def/model#"
		xmlns:dcmi="http://purl.org/dc/terms/"
		xmlns:pcdm="http://pcdm.org/models#"
		xmlns:rel="info:fedora/fedora-system:def/relations-external#"
		xmlns:cc="http://creativecommons.org/ns#"
		xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
	  <rdf:Description rdf:about="info:fedora/%s">
		<fedora-model:hasModel rdf:resource="info:fedora/ldpd:Resource"></fedora-model:hasModel>
		<rdf:type rdf:resource="http://pcdm.org/models#File"></rdf:type>
		<pcdm:memberOf rdf:resource="info:fedora/%s"></pcdm:memberOf>
		%s
		<cc:license rdf:resource="info:fedora/"></cc:license>
	  </rdf:Description>
	</rdf:RDF>`, escapeMarkup(resourcePid), escapeMarkup(aggregatorPid), collectionMarkup), nil
}

// FOXML kombiniert DC und RDF zu einem Objekt-Wrapper mit Zustand, Label
// sowie Byte-Länge und Zeitstempel je Abschnitt. Das Ergebnis wird zur
// Validierung erneut geparst; ein Parse-Fehler ist eine Warnung, kein Abbruch.
func (dc *DocumentComposer) FOXML(pid, label, xmlContent, state, rdfContent string) (string, string, error) {
	if pid == "" {
		return "", "", &CompositionError{Document: "foxml", Reason: "pid is missing"}
	}
	if xmlContent == "" {
		return "", "", &CompositionError{Document: "foxml", Reason: "xml content is missing"}
	}
	if rdfContent == "" {
		return "", "", &CompositionError{Document: "foxml", Reason: "rdf content is missing"}
	}
	if state == "" {
		state = "Active"
	}

	created := dc.now().UTC().Format("2006-01-02T15:04:05Z")
	out := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
	<foxml:digitalObject VERSION="1.1" PID="%s"
		xmlns:foxml="info:fedora/fedora-system:def/foxml#"
		xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
		xsi:schemaLocation="info:fedora/fedora-system:def/foxml# http://www.fedora.info/definitions/1/0/foxml1-1.xsd">
		<foxml:objectProperties>
			<foxml:property NAME="info:fedora/fedora-system:def/model#state" VALUE="%s"/>
			<foxml:property NAME="info:fedora/fedora-system:def/model#label" VALUE="%s"/>
		</foxml:objectProperties>
		<foxml:datastream ID="DC" STATE="A" CONTROL_GROUP="X" VERSIONABLE="true">
			<foxml:datastreamVersion ID="DC1.0" LABEL="Dublin Core Record for this object"
					CREATED="%s" MIMETYPE="text/xml"
					FORMAT_URI="http://www.openarchives.org/OAI/2.0/oai_dc/" SIZE="%d">
				<foxml:xmlContent>%s</foxml:xmlContent>
			</foxml:datastreamVersion>
		</foxml:datastream>
		<foxml:datastream ID="RELS-EXT" STATE="A" CONTROL_GROUP="X" VERSIONABLE="true">
			<foxml:datastreamVersion ID="RELS-EXT1.0" LABEL="RDF Statements about this object"
					CREATED="%s" MIMETYPE="application/rdf+xml"
					FORMAT_URI="info:fedora/fedora-system:FedoraRELSExt-1.0" SIZE="%d">
				<foxml:xmlContent>%s</foxml:xmlContent>
			</foxml:datastreamVersion>
		</foxml:datastream>
	</foxml:digitalObject>`,
		escapeMarkup(pid), escapeMarkup(state), escapeMarkup(label),
		created, len(xmlContent), xmlContent,
		created, len(rdfContent), rdfContent)

	warning := ""
	if err := checkWellFormed(out); err != nil {
		warning = fmt.Sprintf("foxml for %s is not well-formed: %v", pid, err)
		dc.logger.Warn("Wrapper-Dokument nicht wohlgeformt", zap.String("pid", pid), zap.Error(err))
	}
	return out, warning, nil
}

// checkWellFormed parst das Dokument erneut und meldet Strukturfehler.
func checkWellFormed(doc string) error {
	decoder := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// MODS erzeugt den bibliographischen Satz des Deposits.
func (dc *DocumentComposer) MODS(md *models.NormalizedMetadata) (string, error) {
	if md.Pid == "" {
		return "", &CompositionError{Document: "mods", Reason: "pid is missing"}
	}

	var names strings.Builder
	for _, a := range md.Authors {
		if a.Role != models.RoleCreator && a.Role != models.RoleAuthor {
			continue
		}
		if a.Role == models.RoleCreator {
			// Gruppen-Deposit: ein korporativer Name ohne family/given-Split.
			names.WriteString("\n\t\t<name type=\"corporate\">")
			fmt.Fprintf(&names, "\n\t\t  <namePart>%s</namePart>", escapeMarkup(a.Fullname))
		} else {
			if a.Uni != "" {
				fmt.Fprintf(&names, "\n\t\t<name type=\"personal\" ID=\"%s\">", escapeMarkup(a.Uni))
			} else {
				names.WriteString("\n\t\t<name type=\"personal\">")
			}
			if a.Family != "" || a.Given != "" {
				fmt.Fprintf(&names, "\n\t\t  <namePart type=\"family\">%s</namePart>", escapeMarkup(a.Family))
				fmt.Fprintf(&names, "\n\t\t  <namePart type=\"given\">%s</namePart>", escapeMarkup(a.Given))
			} else {
				fmt.Fprintf(&names, "\n\t\t  <namePart>%s</namePart>", escapeMarkup(a.Fullname))
			}
		}
		fmt.Fprintf(&names, "\n\t\t  <role><roleTerm type=\"text\">%s</roleTerm></role>", escapeMarkup(string(a.Role)))
		if a.Affiliation != "" {
			fmt.Fprintf(&names, "\n\t\t  <affiliation>%s</affiliation>", escapeMarkup(a.Affiliation))
		}
		names.WriteString("\n\t\t</name>")
	}

	org := ""
	if institutionGenres[md.Genre] && md.Institution != "" {
		org = fmt.Sprintf(`
		<name type="corporate">
		  <namePart>%s</namePart>
		  <role><roleTerm type="text">originator</roleTerm></role>
		</name>`, escapeMarkup(md.Institution))
	}

	dateIssued := ""
	if md.DateIssued != "" {
		dateIssued = fmt.Sprintf(`
		<originInfo>
			<dateIssued encoding="w3cdtf" keyDate="yes">%s</dateIssued>
		</originInfo>`, escapeMarkup(md.DateIssued))
	}

	resourceType := ""
	if md.TypeOfResource != "" {
		resourceType = fmt.Sprintf("\n\t\t<typeOfResource>%s</typeOfResource>", escapeMarkup(md.TypeOfResource))
	}

	language := ""
	if md.Language != "" {
		language = fmt.Sprintf(`
		<language>
			<languageTerm authority="iso639-3">%s</languageTerm>
		</language>`, escapeMarkup(md.Language))
	}

	genre := ""
	if md.Genre != "" {
		genre = fmt.Sprintf("\n\t\t<genre>%s</genre>", escapeMarkup(md.Genre))
	}

	var subjects strings.Builder
	for _, s := range md.Subjects {
		fmt.Fprintf(&subjects, "\n\t\t<subject><topic>%s</topic></subject>", escapeMarkup(s))
	}

	return fmt.Sprintf(`<mods xmlns="http://www.loc.gov/mods/v3"
	  xmlns:xlink="http://www.w3.org/1999/xlink"
	  xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
	  xsi:schemaLocation="http://www.loc.gov/mods/v3 http://www.loc.gov/standards/mods/v3/mods-3-4.xsd">
		<titleInfo>
			<title>%s</title>
		</titleInfo>%s%s%s%s%s%s
		<abstract>%s</abstract>%s%s
		<recordInfo>
			<recordCreationDate encoding="w3cdtf">%s</recordCreationDate>
			<languageOfCataloging>
				<languageTerm authority="iso639-3">eng</languageTerm>
			</languageOfCataloging>
		</recordInfo>
	</mods>`,
		escapeMarkup(md.Title), names.String(), org, resourceType, genre,
		dateIssued, language, escapeMarkup(md.Abstract), subjects.String(),
		dc.relatedItem(md), dc.now().Format("2006-01-02 15:04:05 -0700")), nil
}

// relatedItem baut den variantenabhängigen Host-Block des MODS-Satzes.
// journal-article: Venue/Volume/Issue/Pages/Identifier; book-chapter:
// Venue/Editor/Chapter/Pages/Identifier; Konferenz-Genres: nur Venue/Publisher.
func (dc *DocumentComposer) relatedItem(md *models.NormalizedMetadata) string {
	titleInfo := func(title string) string {
		if title != "" {
			return fmt.Sprintf("\n\t\t\t<titleInfo>\n\t\t\t\t<title>%s</title>\n\t\t\t</titleInfo>", escapeMarkup(title))
		}
		return "\n\t\t\t<titleInfo>\n\t\t\t\t<title/>\n\t\t\t</titleInfo>"
	}
	originInfo := func() string {
		if md.Publisher == "" {
			return ""
		}
		out := fmt.Sprintf("\n\t\t\t<originInfo>\n\t\t\t\t<publisher>%s</publisher>", escapeMarkup(md.Publisher))
		if md.DateIssued != "" {
			out += fmt.Sprintf("\n\t\t\t\t<dateIssued encoding=\"w3cdtf\">%s</dateIssued>", escapeMarkup(md.DateIssued))
		}
		return out + "\n\t\t\t</originInfo>"
	}
	pages := func() string {
		if md.StartPage == "" {
			return ""
		}
		return fmt.Sprintf("\n\t\t\t\t<extent unit=\"page\">\n\t\t\t\t\t<start>%s</start>\n\t\t\t\t\t<end>%s</end>\n\t\t\t\t</extent>",
			escapeMarkup(md.StartPage), escapeMarkup(md.EndPage))
	}
	datePart := func() string {
		if md.Date == "" {
			return ""
		}
		return fmt.Sprintf("\n\t\t\t\t<date>%s</date>", escapeMarkup(md.Date))
	}
	identifier := func(kind, value string) string {
		if value == "" {
			return ""
		}
		return fmt.Sprintf("\n\t\t\t<identifier type=%q>%s</identifier>", kind, escapeMarkup(value))
	}

	switch {
	case md.PublicationType == models.PubJournalArticle:
		var part strings.Builder
		if md.Volume != "" {
			fmt.Fprintf(&part, "\n\t\t\t\t<detail type=\"volume\">\n\t\t\t\t\t<number>%s</number>\n\t\t\t\t</detail>", escapeMarkup(md.Volume))
		}
		if md.Issue != "" {
			fmt.Fprintf(&part, "\n\t\t\t\t<detail type=\"issue\">\n\t\t\t\t\t<number>%s</number>\n\t\t\t\t</detail>", escapeMarkup(md.Issue))
		}
		part.WriteString(pages())
		part.WriteString(datePart())
		return fmt.Sprintf("\n\t\t<relatedItem type=\"host\">%s%s\n\t\t\t<part>%s\n\t\t\t</part>%s%s\n\t\t</relatedItem>",
			titleInfo(md.BookJournalTitle), originInfo(), part.String(),
			identifier("doi", md.DOI), identifier("issn", md.ISSN))

	case md.PublicationType == models.PubBookChapter:
		editor := ""
		if md.BookAuthor != "" {
			editor = fmt.Sprintf("\n\t\t\t<name type=\"personal\">\n\t\t\t\t<namePart>%s</namePart>\n\t\t\t\t<role><roleTerm type=\"text\">editor</roleTerm></role>\n\t\t\t</name>", escapeMarkup(md.BookAuthor))
		}
		var part strings.Builder
		if md.Chapter != "" {
			fmt.Fprintf(&part, "\n\t\t\t\t<detail type=\"chapter\">\n\t\t\t\t\t<number>%s</number>\n\t\t\t\t</detail>", escapeMarkup(md.Chapter))
		}
		part.WriteString(pages())
		part.WriteString(datePart())
		return fmt.Sprintf("\n\t\t<relatedItem type=\"host\">%s%s%s\n\t\t\t<part>%s\n\t\t\t</part>%s%s\n\t\t</relatedItem>",
			titleInfo(md.BookJournalTitle), editor, originInfo(), part.String(),
			identifier("doi", md.DOI), identifier("isbn", md.ISBN))

	case md.Genre == "Conference proceeding" || md.Genre == "Conference paper":
		return fmt.Sprintf("\n\t\t<relatedItem type=\"host\">%s%s\n\t\t</relatedItem>",
			titleInfo(md.ConferenceTitle), originInfo())
	}
	return ""
}
