package solr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"commons-core/config"
	"commons-core/models"
	"commons-core/services"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Document ist das Index-Dokument eines Deposits.
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title_display"`
	Abstract    string   `json:"abstract_ts,omitempty"`
	Authors     []string `json:"author_display,omitempty"`
	Genre       string   `json:"genre_facet,omitempty"`
	DateIssued  string   `json:"pub_date_facet,omitempty"`
	Publisher   string   `json:"publisher_display,omitempty"`
	Subjects    []string `json:"subject_topic_facet,omitempty"`
	Keywords    []string `json:"keyword_search,omitempty"`
	Language    string   `json:"language_facet,omitempty"`
	MemberOf    string   `json:"member_of_pids,omitempty"`
	Handle      string   `json:"handle,omitempty"`
	FullText    string   `json:"full_text,omitempty"`
	RecordOwner string   `json:"record_owner,omitempty"`
}

// Client kapselt die Logik für den Suchindex.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen Suchindex-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// BuildDocument setzt das Index-Dokument aus Metadata und Volltext zusammen.
// Mit leerem fullText entsteht die Metadata-only-Variante.
func BuildDocument(md *models.NormalizedMetadata, fullText string) *Document {
	return &Document{
		ID:          md.Pid,
		Title:       md.Title,
		Abstract:    md.Abstract,
		Authors:     md.CreatorList(),
		Genre:       md.Genre,
		DateIssued:  md.DateIssued,
		Publisher:   md.Publisher,
		Subjects:    md.Subjects,
		Keywords:    md.Keywords,
		Language:    md.Language,
		MemberOf:    md.MemberOf,
		Handle:      md.Handle,
		FullText:    fullText,
		RecordOwner: md.Submitter,
	}
}

// IndexDeposit indiziert einen Deposit aus seiner Metadata; mit leerem
// fullText entsteht die Metadata-only-Variante.
func (c *Client) IndexDeposit(md *models.NormalizedMetadata, fullText string) error {
	return c.Index(BuildDocument(md, fullText))
}

// Index schreibt das Dokument in den Suchindex. Timeouts und 5xx werden
// als transient gemeldet, alle anderen Fehler als permanent.
func (c *Client) Index(doc *Document) error {
	payload, err := json.Marshal([]*Document{doc})
	if err != nil {
		return &services.IndexingError{Transient: false, Err: err}
	}

	endpoint := fmt.Sprintf("%s/%s/update?commit=true", c.Config.SolrBaseURL, c.Config.SolrCore)
	log := c.Logger.With(zap.String("pid", doc.ID))
	log.Debug("Schreibe Dokument in den Suchindex.")

	resp, err := httpClient.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return &services.IndexingError{Transient: isTransient(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &services.IndexingError{Transient: true,
			Err: fmt.Errorf("index update failed with status: %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &services.IndexingError{Transient: false,
			Err: fmt.Errorf("index update failed with status: %d", resp.StatusCode)}
	}
	log.Info("Dokument indiziert.")
	return nil
}

// Delete entfernt das Dokument eines Pids aus dem Suchindex.
func (c *Client) Delete(pid string) error {
	payload, err := json.Marshal(map[string]any{"delete": map[string]string{"id": pid}})
	if err != nil {
		return &services.IndexingError{Transient: false, Err: err}
	}

	endpoint := fmt.Sprintf("%s/%s/update?commit=true", c.Config.SolrBaseURL, c.Config.SolrCore)
	resp, err := httpClient.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return &services.IndexingError{Transient: isTransient(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &services.IndexingError{Transient: true,
			Err: fmt.Errorf("index delete failed with status: %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &services.IndexingError{Transient: false,
			Err: fmt.Errorf("index delete failed with status: %d", resp.StatusCode)}
	}
	return nil
}

// isTransient erkennt Netz- und Timeout-Fehler.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
