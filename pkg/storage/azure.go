// Package storage provides host blob stores backed by cloud object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/pkg/host"
)

// AzureConfig configures an AzureBlobStore.
type AzureConfig struct {
	// ConnectionString is a standard storage account connection string. A
	// BlobEndpoint entry overrides the public endpoint, e.g. for Azurite.
	ConnectionString string `mapstructure:"connection_string"`
	// Container holds every blob of the store
	Container string `mapstructure:"container"`
	// Prefix is prepended to blob ids to form blob names
	Prefix string `mapstructure:"prefix"`
	// ContentType is set on uploaded blobs
	ContentType string `mapstructure:"content_type"`
}

// AzureBlobStore implements host.BlobStore on an Azure Blob Storage container using
// shared key credentials. Blob ids map to blob names under Prefix.
type AzureBlobStore struct {
	client      *azblob.Client
	serviceURL  string
	container   string
	prefix      string
	contentType string
	logger      *zap.Logger

	mu            sync.Mutex
	containerInit bool
}

var _ host.BlobStore = (*AzureBlobStore)(nil)

// NewAzureBlobStore creates a store from cfg.
func NewAzureBlobStore(cfg AzureConfig, logger *zap.Logger) (*AzureBlobStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("container name is required")
	}

	params := parseConnectionString(cfg.ConnectionString)
	accountName := params["AccountName"]
	accountKey := params["AccountKey"]
	serviceURL := params["BlobEndpoint"]
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("account name and key are required in the connection string")
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	var clientOpts *azblob.ClientOptions
	if strings.HasPrefix(strings.ToLower(serviceURL), "http://") {
		clientOpts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				InsecureAllowCredentialWithHTTP: true,
			},
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	contentType := cfg.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &AzureBlobStore{
		client:      client,
		serviceURL:  strings.TrimRight(serviceURL, "/"),
		container:   cfg.Container,
		prefix:      cfg.Prefix,
		contentType: contentType,
		logger:      logger,
	}, nil
}

// BlobName returns the blob name an id is stored under.
func (a *AzureBlobStore) BlobName(id string) string {
	return a.prefix + strings.TrimPrefix(id, "/")
}

// URL returns the address of the blob an id is stored under.
func (a *AzureBlobStore) URL(id string) string {
	return a.serviceURL + "/" + a.container + "/" + a.BlobName(id)
}

// Get downloads a blob. Missing blobs and containers yield host.ErrBlobNotFound.
func (a *AzureBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("blob id is required")
	}
	name := a.BlobName(id)

	resp, err := a.client.DownloadStream(ctx, a.container, name, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", host.ErrBlobNotFound, id)
		}
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob data: %w", err)
	}
	return data, nil
}

// Put uploads a blob, creating the container on first use.
func (a *AzureBlobStore) Put(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return fmt.Errorf("blob id is required")
	}
	if err := a.ensureContainer(ctx); err != nil {
		return err
	}
	name := a.BlobName(id)

	_, err := a.client.UploadBuffer(ctx, a.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(a.contentType),
		},
	})
	if err != nil {
		a.logger.Error("Failed to upload blob",
			zap.String("blob_name", name),
			zap.Int("size", len(data)),
			zap.Error(err))
		return fmt.Errorf("blob upload failed: %w", err)
	}

	a.logger.Debug("Uploaded blob",
		zap.String("blob_name", name),
		zap.Int("size_bytes", len(data)))
	return nil
}

func (a *AzureBlobStore) ensureContainer(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.containerInit {
		return nil
	}

	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !errors.As(err, &respErr) || respErr.ErrorCode != "ContainerAlreadyExists" {
			return fmt.Errorf("failed to ensure container: %w", err)
		}
	}

	a.containerInit = true
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func parseConnectionString(connectionString string) map[string]string {
	parts := strings.Split(connectionString, ";")
	params := make(map[string]string, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			continue
		}
		params[key] = value
	}
	return params
}
