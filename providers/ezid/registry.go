package ezid

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"commons-core/config"
	"commons-core/services"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Client kapselt die Logik für die DOI-Registry (ANVL über HTTP).
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen Registry-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Reserve legt eine DOI unter dem konfigurierten Shoulder an, zunächst
// im Status reserved. Der Identifier wird aus der Antwort gelesen.
func (c *Client) Reserve(candidate services.DoiCandidate) (string, error) {
	body := anvl(map[string]string{
		"_target":                  candidate.Target,
		"_status":                  "reserved",
		"datacite.creator":         candidate.Creators,
		"datacite.title":           candidate.Title,
		"datacite.publisher":       candidate.Publisher,
		"datacite.publicationyear": candidate.Date,
		"datacite.resourcetype":    candidate.Type,
	})

	endpoint := fmt.Sprintf("%s/shoulder/%s", c.Config.DoiBaseURL, c.Config.DoiShoulder)
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return "", &services.RegistryError{Op: "reserve", Err: err}
	}
	req.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	req.SetBasicAuth(c.Config.DoiUser, c.Config.DoiPassword)

	c.Logger.Debug("Reserviere DOI.", zap.String("title", candidate.Title))
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &services.RegistryError{Op: "reserve", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &services.RegistryError{Op: "reserve",
			Err: fmt.Errorf("registry answered %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}

	doi := parseIdentifier(string(raw))
	if doi == "" {
		return "", &services.RegistryError{Op: "reserve",
			Err: fmt.Errorf("registry answered without identifier: %s", strings.TrimSpace(string(raw)))}
	}
	c.Logger.Info("DOI reserviert.", zap.String("doi", doi))
	return doi, nil
}

// Publish schaltet eine reservierte DOI öffentlich und setzt das
// endgültige Target.
func (c *Client) Publish(doi, target string) error {
	body := anvl(map[string]string{
		"_status": "public",
		"_target": target,
	})

	endpoint := fmt.Sprintf("%s/id/%s", c.Config.DoiBaseURL, doi)
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return &services.RegistryError{Op: "publish", Err: err}
	}
	req.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	req.SetBasicAuth(c.Config.DoiUser, c.Config.DoiPassword)

	resp, err := httpClient.Do(req)
	if err != nil {
		return &services.RegistryError{Op: "publish", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &services.RegistryError{Op: "publish",
			Err: fmt.Errorf("registry answered %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}
	c.Logger.Info("DOI veröffentlicht.", zap.String("doi", doi))
	return nil
}

// anvl serialisiert die Metadaten ins zeilenbasierte Format der Registry.
func anvl(fields map[string]string) string {
	var b strings.Builder
	for key, value := range fields {
		if value == "" {
			continue
		}
		value = strings.ReplaceAll(value, "%", "%25")
		value = strings.ReplaceAll(value, "\n", "%0A")
		value = strings.ReplaceAll(value, "\r", "%0D")
		fmt.Fprintf(&b, "%s: %s\n", key, value)
	}
	return b.String()
}

// parseIdentifier liest die erste "success: doi:..."-Zeile der Antwort.
func parseIdentifier(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "success:"); ok {
			// Die Antwort kann "doi:... | ark:/..." enthalten.
			id, _, _ := strings.Cut(strings.TrimSpace(rest), "|")
			return strings.TrimSpace(id)
		}
	}
	return ""
}
