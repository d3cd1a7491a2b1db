package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mensajeria/internal/domain"
	"mensajeria/internal/requestlog"
	"mensajeria/internal/storage"
)

type upload struct {
	bucket, key string
	body        []byte
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads []upload
	fail    error
	listed  string
}

func (f *fakeStorage) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	b, _ := io.ReadAll(body)
	f.uploads = append(f.uploads, upload{bucket: bucket, key: key, body: b})
	return "s3://" + bucket + "/" + key, nil
}

func (f *fakeStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = prefix
	out := make([]storage.ObjectInfo, 0, len(f.uploads))
	for _, u := range f.uploads {
		if strings.HasPrefix(u.key, prefix) {
			out = append(out, storage.ObjectInfo{Key: u.key, Size: int64(len(u.body))})
		}
	}
	return out, nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func newArchiver(ring *requestlog.Ring, store storage.Service, interval time.Duration) *Archiver {
	logger, _ := test.NewNullLogger()
	return New(Config{
		Bucket:   "logs",
		Prefix:   "/request-logs/",
		Interval: interval,
		Logger:   logger,
		Now:      func() time.Time { return time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC) },
	}, ring, store)
}

func TestFlush_UploadsOnlyNewEntries(t *testing.T) {
	ring := requestlog.NewRing(10)
	store := &fakeStorage{}
	a := newArchiver(ring, store, time.Hour)
	ctx := context.Background()

	key, err := a.Flush(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)

	ring.Append(domain.RequestLog{Method: "GET", Path: "/health", StatusCode: 200})
	ring.Append(domain.RequestLog{Method: "POST", Path: "/login", StatusCode: 401})

	key, err = a.Flush(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "request-logs/2026/10/16/20261016T083000Z-"), key)
	assert.True(t, strings.HasSuffix(key, ".json"))

	var got []domain.RequestLog
	require.NoError(t, json.Unmarshal(store.uploads[0].body, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "/login", got[1].Path)

	ring.Append(domain.RequestLog{Method: "GET", Path: "/stats", StatusCode: 200})
	_, err = a.Flush(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(store.uploads[1].body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "/stats", got[0].Path)

	_, err = a.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.count())
}

func TestFlush_FailureKeepsEntriesPending(t *testing.T) {
	ring := requestlog.NewRing(10)
	store := &fakeStorage{fail: errors.New("s3 down")}
	a := newArchiver(ring, store, time.Hour)

	ring.Append(domain.RequestLog{Path: "/a"})
	_, err := a.Flush(context.Background())
	require.Error(t, err)

	store.fail = nil
	ring.Append(domain.RequestLog{Path: "/b"})
	_, err = a.Flush(context.Background())
	require.NoError(t, err)

	var got []domain.RequestLog
	require.NoError(t, json.Unmarshal(store.uploads[0].body, &got))
	assert.Len(t, got, 2)
}

func TestStartShutdown_PeriodicAndFinalFlush(t *testing.T) {
	ring := requestlog.NewRing(10)
	store := &fakeStorage{}
	a := newArchiver(ring, store, 10*time.Millisecond)

	a.Start(context.Background())
	ring.Append(domain.RequestLog{Path: "/tick"})
	require.Eventually(t, func() bool { return store.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	ring.Append(domain.RequestLog{Path: "/late"})
	a.Shutdown(context.Background())
	assert.GreaterOrEqual(t, store.count(), 2)
}

func TestListArchives_UsesPrefix(t *testing.T) {
	ring := requestlog.NewRing(10)
	store := &fakeStorage{}
	a := newArchiver(ring, store, time.Hour)

	ring.Append(domain.RequestLog{Path: "/a"})
	_, err := a.Flush(context.Background())
	require.NoError(t, err)

	objects, err := a.ListArchives(context.Background())
	require.NoError(t, err)
	assert.Len(t, objects, 1)
	assert.Equal(t, "request-logs/", store.listed)
}
