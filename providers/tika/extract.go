package tika

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"commons-core/config"
)

var httpClient = &http.Client{Timeout: 120 * time.Second}

// Client kapselt die Logik für die Volltext-Extraktion.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen Extraktions-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Eligible prüft, ob eine Datei überhaupt extrahiert wird: nur
// Text-Formate (kein Audio/Bild/Video) unterhalb der Größenschwelle.
func (c *Client) Eligible(filetype string, filesize int64) bool {
	for _, prefix := range []string{"audio/", "image/", "video/"} {
		if strings.HasPrefix(filetype, prefix) {
			return false
		}
	}
	return filesize < c.Config.ExtractMaxSize
}

// ExtractText schickt den Datei-Inhalt an den Extraktionsdienst und
// gibt den reinen Text zurück.
func (c *Client) ExtractText(content []byte, filetype string) (string, error) {
	endpoint := fmt.Sprintf("%s/tika", c.Config.TikaBaseURL)
	req, err := http.NewRequest(http.MethodPut, endpoint, bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	if filetype != "" {
		req.Header.Set("Content-Type", filetype)
	}
	req.Header.Set("Accept", "text/plain")

	c.Logger.Debug("Extrahiere Volltext.", zap.String("filetype", filetype), zap.Int("bytes", len(content)))
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extraction failed with status: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
