package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Site-weite Werte, die explizit in den Orchestrator injiziert werden.
	SiteURL       string `envconfig:"SITE_URL" required:"true"`
	SocietyID     string `envconfig:"SOCIETY_ID" default:"hc"`
	PidNamespace  string `envconfig:"PID_NAMESPACE" default:"hc"`
	CollectionPid string `envconfig:"COLLECTION_PID"`
	AdminLogin    string `envconfig:"ADMIN_LOGIN" default:"hcadmin"`

	// Repository-Store (Datastreams liegen in S3)
	RepoS3Key    string `envconfig:"REPO_S3_KEY" required:"true"`
	RepoS3Secret string `envconfig:"REPO_S3_SECRET" required:"true"`
	RepoS3URL    string `envconfig:"REPO_S3_URL" required:"true"`
	RepoS3Region string `envconfig:"REPO_S3_REGION" required:"true"`
	RepoS3Bucket string `envconfig:"REPO_S3_BUCKET" required:"true"`

	// Suchindex
	SolrBaseURL string `envconfig:"SOLR_BASE_URL" required:"true"`
	SolrCore    string `envconfig:"SOLR_CORE" default:"deposits"`

	// DOI-Registry
	DoiBaseURL  string `envconfig:"DOI_BASE_URL"`
	DoiShoulder string `envconfig:"DOI_SHOULDER" default:"doi:10.17613/"`
	DoiUser     string `envconfig:"DOI_USER"`
	DoiPassword string `envconfig:"DOI_PASSWORD"`

	// Text-Extraktion
	TikaBaseURL    string `envconfig:"TIKA_BASE_URL"`
	ExtractMaxSize int64  `envconfig:"EXTRACT_MAX_SIZE" default:"1000000"`

	ReviewGroupSlug  string `envconfig:"REVIEW_GROUP_SLUG" default:"provisional-deposit-review"`
	ReindexSchedule  string `envconfig:"REINDEX_SCHEDULE" default:"*/10 * * * *"`
	ReindexBatchSize int    `envconfig:"REINDEX_BATCH_SIZE" default:"25"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
