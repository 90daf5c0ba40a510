package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/pkg/host"
)

// fakeBlobService serves the subset of the Blob REST API the store uses.
type fakeBlobService struct {
	mu         sync.Mutex
	containers map[string]bool
	blobs      map[string][]byte
}

func newFakeBlobService() *fakeBlobService {
	return &fakeBlobService{containers: map[string]bool{}, blobs: map[string][]byte{}}
}

func (f *fakeBlobService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodPut && r.URL.Query().Get("restype") == "container":
		if f.containers[path] {
			w.Header().Set("x-ms-error-code", "ContainerAlreadyExists")
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.containers[path] = true
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.blobs[path] = body
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet:
		data, ok := f.blobs[path]
		if !ok {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T, svc *fakeBlobService) *AzureBlobStore {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	store, err := NewAzureBlobStore(AzureConfig{
		ConnectionString: "AccountName=dev;AccountKey=dGVzdA==;BlobEndpoint=" + srv.URL,
		Container:        "docs",
		Prefix:           "stagehand/",
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestNewAzureBlobStore(t *testing.T) {
	tests := []struct {
		name        string
		cfg         AzureConfig
		errContains string
	}{
		{"empty connection string", AzureConfig{Container: "c"}, "connection string is required"},
		{"empty container", AzureConfig{ConnectionString: "AccountName=a;AccountKey=dGVzdA=="}, "container name is required"},
		{"missing key", AzureConfig{ConnectionString: "AccountName=a", Container: "c"}, "account name and key"},
		{"valid", AzureConfig{ConnectionString: "AccountName=a;AccountKey=dGVzdA==", Container: "c"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewAzureBlobStore(tt.cfg, nil)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://a.blob.core.windows.net/c/x", store.URL("x"))
		})
	}
}

func TestAzureBlobStoreRoundTrip(t *testing.T) {
	svc := newFakeBlobService()
	store := newTestStore(t, svc)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "d1/body", []byte("hello")))
	require.NoError(t, store.Put(ctx, "d2/body", []byte("again")))

	svc.mu.Lock()
	assert.Contains(t, svc.blobs, "docs/stagehand/d1/body")
	assert.True(t, svc.containers["docs"])
	svc.mu.Unlock()

	data, err := store.Get(ctx, "d1/body")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestAzureBlobStoreNotFound(t *testing.T) {
	store := newTestStore(t, newFakeBlobService())

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, host.ErrBlobNotFound)

	_, err = store.Get(context.Background(), "")
	assert.Error(t, err)
	assert.Error(t, store.Put(context.Background(), "", nil))
}

func TestAzureBlobStoreExistingContainer(t *testing.T) {
	svc := newFakeBlobService()
	svc.containers["docs"] = true
	store := newTestStore(t, svc)

	require.NoError(t, store.Put(context.Background(), "x", []byte("1")))
}

func TestParseConnectionString(t *testing.T) {
	params := parseConnectionString("AccountName=a; AccountKey=k==;;BlobEndpoint=http://127.0.0.1:10000/a")
	assert.Equal(t, "a", params["AccountName"])
	assert.Equal(t, "k==", params["AccountKey"])
	assert.Equal(t, "http://127.0.0.1:10000/a", params["BlobEndpoint"])
}
