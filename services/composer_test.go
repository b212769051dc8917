package services

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"commons-core/models"
)

func testComposer() *DocumentComposer {
	c := NewDocumentComposer(zap.NewNop())
	c.now = func() time.Time {
		return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	return c
}

func testMetadata() *models.NormalizedMetadata {
	return &models.NormalizedMetadata{
		Pid:        "hc:1001",
		Title:      "A Study of Things",
		Abstract:   "An abstract.",
		Genre:      "Article",
		Language:   "eng",
		DateIssued: "2020",
		Publisher:  "Journal House",
		Subjects:   []string{"History", "Linguistics"},
		Authors: []models.AuthorEntry{
			{Fullname: "Mary Wilson", Given: "Mary", Family: "Wilson", Uni: "mwilson",
				Role: models.RoleAuthor, Affiliation: "Example University"},
		},
		TypeOfResource: "Text",
	}
}

func TestComposeAllRejectsMissingPids(t *testing.T) {
	c := testComposer()
	_, err := c.ComposeAll(testMetadata(), models.IdentifierPair{}, "application/pdf", "study.pdf", "")
	var compErr *CompositionError
	require.ErrorAs(t, err, &compErr)
}

func TestComposeAllProducesWellFormedDocuments(t *testing.T) {
	c := testComposer()
	pair := models.IdentifierPair{AggregatorPid: "hc:1001", ResourcePid: "hc:1002"}

	docs, err := c.ComposeAll(testMetadata(), pair, "application/pdf", "study.pdf", "hccollection:1")
	require.NoError(t, err)
	assert.Empty(t, docs.Warnings)

	for _, doc := range []string{
		docs.AggregatorDC, docs.AggregatorRDF, docs.AggregatorFOXML,
		docs.ResourceDC, docs.ResourceRDF, docs.ResourceFOXML, docs.MODS,
	} {
		require.NotEmpty(t, doc)
		assert.NoError(t, checkWellFormed(doc))
	}
}

func TestAggregatorRDFRelations(t *testing.T) {
	c := testComposer()

	rdf, err := c.AggregatorRDF("hc:1001", "hccollection:1", false, "ContentAggregator")
	require.NoError(t, err)
	assert.Contains(t, rdf, `rdf:about="info:fedora/hc:1001"`)
	assert.Contains(t, rdf, "info:fedora/ldpd:ContentAggregator")
	assert.Contains(t, rdf, `<pcdm:memberOf rdf:resource="info:fedora/hccollection:1">`)
	// Die License-Kante wird immer emittiert, auch leer.
	assert.Contains(t, rdf, `<cc:license rdf:resource="info:fedora/">`)
	assert.NotContains(t, rdf, "<isCollection")
}

func TestAggregatorRDFCollectionFlag(t *testing.T) {
	c := testComposer()

	rdf, err := c.AggregatorRDF("hccollection:1", "", true, "BagAggregator")
	require.NoError(t, err)
	assert.Contains(t, rdf, ">true</isCollection>")
	assert.Contains(t, rdf, "info:fedora/ldpd:BagAggregator")
	assert.NotContains(t, rdf, "<pcdm:memberOf")
}

func TestResourceRDFMembership(t *testing.T) {
	c := testComposer()

	rdf, err := c.ResourceRDF("hc:1001", "hc:1002", "")
	require.NoError(t, err)
	assert.Contains(t, rdf, `rdf:about="info:fedora/hc:1002"`)
	assert.Contains(t, rdf, "info:fedora/ldpd:Resource")
	assert.Contains(t, rdf, `<pcdm:memberOf rdf:resource="info:fedora/hc:1001">`)
}

func TestFOXMLCarriesStateLabelAndSizes(t *testing.T) {
	c := testComposer()

	dc, err := c.AggregatorDC("hc:1001", "HC", "", "")
	require.NoError(t, err)
	rdf, err := c.AggregatorRDF("hc:1001", "", false, "")
	require.NoError(t, err)

	foxml, warning, err := c.FOXML("hc:1001", "study.pdf", dc, "Active", rdf)
	require.NoError(t, err)
	assert.Empty(t, warning)

	assert.Contains(t, foxml, `PID="hc:1001"`)
	assert.Contains(t, foxml, `VALUE="Active"`)
	assert.Contains(t, foxml, `VALUE="study.pdf"`)
	assert.Contains(t, foxml, `CREATED="2024-06-15T12:00:00Z"`)
	assert.Contains(t, foxml, `SIZE="`+strconv.Itoa(len(dc))+`"`)
	assert.Contains(t, foxml, `SIZE="`+strconv.Itoa(len(rdf))+`"`)
	assert.NoError(t, checkWellFormed(foxml))
}

func TestFOXMLRejectsEmptySections(t *testing.T) {
	c := testComposer()

	_, _, err := c.FOXML("hc:1001", "x", "", "Active", "<rdf/>")
	var compErr *CompositionError
	require.ErrorAs(t, err, &compErr)

	_, _, err = c.FOXML("", "x", "<dc/>", "Active", "<rdf/>")
	require.ErrorAs(t, err, &compErr)
}

func TestMODSJournalArticleHost(t *testing.T) {
	c := testComposer()
	md := testMetadata()
	md.PublicationType = models.PubJournalArticle
	md.BookJournalTitle = "Journal of Things"
	md.Volume = "12"
	md.Issue = "3"
	md.StartPage = "10"
	md.EndPage = "20"
	md.Date = "Fall 2020"
	md.DOI = "10.1000/xyz"
	md.ISSN = "1234-5678"

	mods, err := c.MODS(md)
	require.NoError(t, err)
	assert.NoError(t, checkWellFormed(mods))

	assert.Contains(t, mods, `<relatedItem type="host">`)
	assert.Contains(t, mods, "<title>Journal of Things</title>")
	assert.Contains(t, mods, `<detail type="volume">`)
	assert.Contains(t, mods, "<number>12</number>")
	assert.Contains(t, mods, `<detail type="issue">`)
	assert.Contains(t, mods, "<number>3</number>")
	assert.Contains(t, mods, "<start>10</start>")
	assert.Contains(t, mods, "<end>20</end>")
	assert.Contains(t, mods, `<identifier type="doi">10.1000/xyz</identifier>`)
	assert.Contains(t, mods, `<identifier type="issn">1234-5678</identifier>`)
}

func TestMODSBookChapterHost(t *testing.T) {
	c := testComposer()
	md := testMetadata()
	md.PublicationType = models.PubBookChapter
	md.BookJournalTitle = "The Big Book"
	md.BookAuthor = "Eve Editor"
	md.Chapter = "4"
	md.StartPage = "100"
	md.EndPage = "120"
	md.ISBN = "978-0000000000"

	mods, err := c.MODS(md)
	require.NoError(t, err)
	assert.NoError(t, checkWellFormed(mods))

	assert.Contains(t, mods, "<title>The Big Book</title>")
	assert.Contains(t, mods, "<namePart>Eve Editor</namePart>")
	assert.Contains(t, mods, `<roleTerm type="text">editor</roleTerm>`)
	assert.Contains(t, mods, `<detail type="chapter">`)
	assert.Contains(t, mods, `<identifier type="isbn">978-0000000000</identifier>`)
}

func TestMODSPersonalAndCorporateNames(t *testing.T) {
	c := testComposer()
	md := testMetadata()
	md.Authors = []models.AuthorEntry{
		{Fullname: "Committee on Digital Editions", Uni: "committee-digital-editions",
			Role: models.RoleCreator, Affiliation: "HC"},
		{Fullname: "Mary Wilson", Given: "Mary", Family: "Wilson", Uni: "mwilson",
			Role: models.RoleAuthor},
		{Fullname: "Sam Submitter", Role: models.RoleSubmitter},
	}

	mods, err := c.MODS(md)
	require.NoError(t, err)

	assert.Contains(t, mods, `<name type="corporate">`)
	assert.Contains(t, mods, "<namePart>Committee on Digital Editions</namePart>")
	assert.Contains(t, mods, `<name type="personal" ID="mwilson">`)
	assert.Contains(t, mods, `<namePart type="family">Wilson</namePart>`)
	assert.Contains(t, mods, `<namePart type="given">Mary</namePart>`)
	// Submitter-Rollen erscheinen nicht im MODS-Satz.
	assert.NotContains(t, mods, "Sam Submitter")
}

func TestMODSInstitutionOriginator(t *testing.T) {
	c := testComposer()
	md := testMetadata()
	md.Genre = "Dissertation"
	md.Institution = "Example University"

	mods, err := c.MODS(md)
	require.NoError(t, err)
	assert.Contains(t, mods, `<roleTerm type="text">originator</roleTerm>`)
	assert.Contains(t, mods, "<namePart>Example University</namePart>")
}

func TestEscapeMarkupStripsInvalidUTF8(t *testing.T) {
	in := "Caf\xffé & <thing>"
	out := escapeMarkup(in)
	assert.Equal(t, "Café &amp; &lt;thing&gt;", out)
}
