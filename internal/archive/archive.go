// Package archive keeps a copy of every committed payload in S3-compatible
// object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sehansi-9/gztprocessor/internal/roster"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// objectPutter is the part of *minio.Client the archive uses.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Entry identifies the commit an archived payload belongs to.
type Entry struct {
	ID          string
	Scope       roster.Scope
	Number      string
	Date        string
	Format      roster.Format
	CommittedAt time.Time
}

type Store struct {
	client objectPutter
	bucket string
	log    *logrus.Entry
}

// New connects to the endpoint and creates the bucket when missing.
func New(ctx context.Context, cfg Config, log *logrus.Entry) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "archive client")
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "create bucket %s", cfg.Bucket)
		}
	}
	return newStore(client, cfg.Bucket, log), nil
}

func newStore(client objectPutter, bucket string, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{client: client, bucket: bucket, log: log.WithField("component", "archive")}
}

// Put uploads payload and returns its object key.
func (s *Store) Put(ctx context.Context, e Entry, payload []byte) (string, error) {
	key := Key(e)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"gazette-number": e.Number,
			"gazette-date":   e.Date,
			"gazette-format": string(e.Format),
			"commit-id":      e.ID,
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "archive payload %s", key)
	}
	s.log.WithFields(logrus.Fields{"key": key, "size": info.Size}).Debug("payload archived")
	return key, nil
}

// Key is scope/date/number/timestamp-id.json with path separators in the
// gazette number replaced.
func Key(e Entry) string {
	number := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(e.Number)
	ts := e.CommittedAt.UTC().Format("20060102T150405Z")
	name := ts
	if e.ID != "" {
		name += "-" + e.ID
	}
	return fmt.Sprintf("%s/%s/%s/%s.json", e.Scope, e.Date, number, name)
}
