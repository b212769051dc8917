package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"commons-core/config"
	"commons-core/models"
	"commons-core/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// NewS3Client erstellt einen S3-Client für den Repository-Store.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.RepoS3URL,
				SigningRegion:     cfg.RepoS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.RepoS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.RepoS3Key, cfg.RepoS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// RepositoryStore legt Objekt-Wrapper und Datastreams als Objekte unter
// "<pid>/<datastream-id>" ab.
type RepositoryStore struct {
	Config *config.Config
	Client *s3.Client
	Logger *zap.Logger
}

// NewRepositoryStore erstellt einen neuen RepositoryStore.
func NewRepositoryStore(cfg *config.Config, client *s3.Client, logger *zap.Logger) *RepositoryStore {
	return &RepositoryStore{Config: cfg, Client: client, Logger: logger}
}

// put schreibt ein einzelnes Objekt und gibt dessen Location zurück.
func (r *RepositoryStore) put(ctx context.Context, pid, dsid, contentType string, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%s", pid, dsid)
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &r.Config.RepoS3Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", r.Config.RepoS3URL, r.Config.RepoS3Bucket, key), nil
}

// IngestObject nimmt einen Objekt-Wrapper ins Repository auf und gibt
// den Deskriptor mit den angelegten Datastreams zurück.
func (r *RepositoryStore) IngestObject(ctx context.Context, pid string, kind models.ObjectKind, foxml string) (*models.RepositoryObjectDescriptor, error) {
	loc, err := r.put(ctx, pid, "FOXML", "text/xml", []byte(foxml))
	if err != nil {
		return nil, &services.IngestError{Pid: pid, Err: err}
	}
	r.Logger.Info("Objekt ins Repository aufgenommen.",
		zap.String("pid", pid), zap.String("kind", string(kind)))
	return &models.RepositoryObjectDescriptor{
		Pid:  pid,
		Kind: kind,
		Datastreams: []models.DatastreamRef{
			{ID: "FOXML", Label: "Object wrapper", MimeType: "text/xml", Location: loc},
		},
	}, nil
}

// FetchDatastream liest einen Datastream wieder aus, z.B. für die
// Hintergrund-Indizierung.
func (r *RepositoryStore) FetchDatastream(ctx context.Context, pid, dsid string) ([]byte, error) {
	key := fmt.Sprintf("%s/%s", pid, dsid)
	out, err := r.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &r.Config.RepoS3Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, &services.IngestError{Pid: pid, Err: err}
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// AttachDatastream hängt einen benannten Byte-Anhang an ein Objekt.
func (r *RepositoryStore) AttachDatastream(ctx context.Context, pid, dsid, label, mimeType string, data []byte) (*models.DatastreamRef, error) {
	loc, err := r.put(ctx, pid, dsid, mimeType, data)
	if err != nil {
		return nil, &services.IngestError{Pid: pid, Err: err}
	}
	r.Logger.Debug("Datastream angehängt.",
		zap.String("pid", pid), zap.String("dsid", dsid), zap.Int("bytes", len(data)))
	return &models.DatastreamRef{ID: dsid, Label: label, MimeType: mimeType, Location: loc}, nil
}
