package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehansi-9/gztprocessor/internal/roster"
)

type fakePutter struct {
	bucket, key string
	body        []byte
	opts        minio.PutObjectOptions
	err         error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.key, f.body, f.opts = bucket, object, body, opts
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func entry() Entry {
	return Entry{
		ID:          "c0ffee",
		Scope:       roster.ScopeOrg,
		Number:      "2289/43",
		Date:        "2022-07-22",
		Format:      roster.FormatAmendment,
		CommittedAt: time.Date(2024, 5, 1, 10, 30, 0, 0, time.FixedZone("LK", 5*3600+1800)),
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "mindep/2022-07-22/2289_43/20240501T050000Z-c0ffee.json", Key(entry()))

	e := entry()
	e.ID = ""
	assert.Equal(t, "mindep/2022-07-22/2289_43/20240501T050000Z.json", Key(e))
}

func TestPut(t *testing.T) {
	f := &fakePutter{}
	s := newStore(f, "gazette-commits", nil)

	key, err := s.Put(context.Background(), entry(), []byte(`{"transactions":{}}`))
	require.NoError(t, err)
	assert.Equal(t, Key(entry()), key)
	assert.Equal(t, "gazette-commits", f.bucket)
	assert.JSONEq(t, `{"transactions":{}}`, string(f.body))
	assert.Equal(t, "application/json", f.opts.ContentType)
	assert.Equal(t, "amendment", f.opts.UserMetadata["gazette-format"])
}

func TestPutFailure(t *testing.T) {
	s := newStore(&fakePutter{err: errors.New("access denied")}, "b", nil)
	_, err := s.Put(context.Background(), entry(), []byte(`[]`))
	assert.ErrorContains(t, err, "access denied")
}
