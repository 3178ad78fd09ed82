package histstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ObjectStore is a byte-addressed key-value store holding the persisted
// history table: whole-blob download, whole-blob overwrite upload.
type ObjectStore interface {
	Download(ctx context.Context) ([]byte, error)
	Upload(ctx context.Context, data []byte) error
}

// BlobStore talks to an Azure-style blob endpoint over plain REST. Writes
// are whole-blob overwrites; the last writer wins and no concurrency token
// is negotiated. The single writer here is the daily merge.
type BlobStore struct {
	client   *resty.Client
	url      string
	sasToken string
}

func NewBlobStore(baseURL, blobName, sasToken string, timeout time.Duration) *BlobStore {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	} else {
		client.SetTimeout(30 * time.Second)
	}
	return &BlobStore{
		client:   client,
		url:      baseURL + "/" + blobName,
		sasToken: sasToken,
	}
}

func (b *BlobStore) requestURL() string {
	if b.sasToken != "" {
		return b.url + "?" + b.sasToken
	}
	return b.url
}

func (b *BlobStore) Download(ctx context.Context) ([]byte, error) {
	resp, err := b.client.R().SetContext(ctx).Get(b.requestURL())
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", ErrStoreUnavailable, b.url, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: download %s: status %d", ErrStoreUnavailable, b.url, resp.StatusCode())
	}
	return resp.Body(), nil
}

func (b *BlobStore) Upload(ctx context.Context, data []byte) error {
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("x-ms-blob-type", "BlockBlob").
		SetHeader("Content-Type", "text/csv").
		SetBody(data).
		Put(b.requestURL())
	if err != nil {
		return fmt.Errorf("%w: upload %s: %v", ErrStoreUnavailable, b.url, err)
	}
	if resp.StatusCode() != 201 && resp.StatusCode() != 200 {
		return fmt.Errorf("%w: upload %s: status %d", ErrStoreUnavailable, b.url, resp.StatusCode())
	}
	return nil
}
