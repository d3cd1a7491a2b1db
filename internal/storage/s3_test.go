package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listResponse = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>logs</Name>
  <Prefix>request-logs</Prefix>
  <KeyCount>1</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>request-logs/2026/10/16/a.json</Key>
    <LastModified>2026-10-16T10:00:00.000Z</LastModified>
    <ETag>"abc"</ETag>
    <Size>42</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`

type fakeS3 struct {
	mu    sync.Mutex
	puts  map[string][]byte
	types map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.puts[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		f.mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(listResponse))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3(t *testing.T) (*S3Service, *fakeS3) {
	t.Helper()
	fake := &fakeS3{puts: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials:  aws.AnonymousCredentials{},
	})
	return NewS3Service(client), fake
}

func TestS3Service_Upload(t *testing.T) {
	svc, fake := newFakeS3(t)

	loc, err := svc.Upload(context.Background(), "logs", "/request-logs/x.json", bytes.NewReader([]byte(`[{"a":1}]`)), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "s3://logs/request-logs/x.json", loc)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	body, ok := fake.puts["/logs/request-logs/x.json"]
	require.True(t, ok, "uploaded paths: %v", fake.puts)
	assert.True(t, strings.Contains(string(body), `{"a":1}`))
	assert.Equal(t, "application/json", fake.types["/logs/request-logs/x.json"])
}

func TestS3Service_UploadValidation(t *testing.T) {
	svc, _ := newFakeS3(t)

	_, err := svc.Upload(context.Background(), "", "k", bytes.NewReader(nil), "")
	assert.Error(t, err)
	_, err = svc.Upload(context.Background(), "b", "/", bytes.NewReader(nil), "")
	assert.Error(t, err)
}

func TestS3Service_ListObjects(t *testing.T) {
	svc, _ := newFakeS3(t)

	objects, err := svc.ListObjects(context.Background(), "logs", "request-logs")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "request-logs/2026/10/16/a.json", objects[0].Key)
	assert.Equal(t, int64(42), objects[0].Size)
	require.NotNil(t, objects[0].LastModified)
	assert.Equal(t, 2026, objects[0].LastModified.Year())

	_, err = svc.ListObjects(context.Background(), "", "")
	assert.Error(t, err)
}
