package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"userhub/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Export is a rendered user export ready for the transport layer.
type Export struct {
	Data        []byte
	ContentType string
	Filename    string
}

type exportEnvelope struct {
	ExportedAt string         `json:"exported_at"`
	TotalUsers int            `json:"total_users"`
	Format     string         `json:"format"`
	Users      []*models.User `json:"users"`
}

func renderExportJSON(users []*models.User, now time.Time) ([]byte, error) {
	envelope := exportEnvelope{
		ExportedAt: now.UTC().Format(time.RFC3339),
		TotalUsers: len(users),
		Format:     "json",
		Users:      users,
	}
	return json.Marshal(envelope)
}

// csvField wraps a value in double quotes, doubling any embedded quote
// characters.
func csvField(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func csvTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func renderExportCSV(users []*models.User) []byte {
	var buf bytes.Buffer
	buf.WriteString("ID,First Name,Last Name,Email,Role,First Login,Last Login,Created At,Updated At\n")
	for _, user := range users {
		createdAt := user.CreatedAt
		updatedAt := user.UpdatedAt
		row := []string{
			user.ID.String(),
			csvField(user.FirstName),
			csvField(user.LastName),
			csvField(user.Email),
			user.Role,
			csvTime(user.FirstLogin),
			csvTime(user.LastLogin),
			csvTime(&createdAt),
			csvTime(&updatedAt),
		}
		buf.WriteString(strings.Join(row, ","))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func exportFilename(format string, now time.Time) string {
	return fmt.Sprintf("users_export_%s.%s", now.UTC().Format("2006-01-02"), format)
}

// ExportArchiver keeps a copy of every generated export in object
// storage. Archival is best effort; the download itself never depends
// on it.
type ExportArchiver interface {
	Archive(ctx context.Context, filename string, data []byte, contentType string) error
}

type minioArchiver struct {
	client *minio.Client
	bucket string
}

func NewMinioArchiver(endpoint, accessKey, secretKey, bucket string, useSSL bool) (ExportArchiver, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &minioArchiver{client: client, bucket: bucket}, nil
}

func (m *minioArchiver) Archive(ctx context.Context, filename string, data []byte, contentType string) error {
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := m.client.PutObject(ctx, m.bucket, filename, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *minioArchiver) ensureBucket(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}
