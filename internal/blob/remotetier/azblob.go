package remotetier

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureTier mirrors blobs into an Azure Blob Storage container.
type AzureTier struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureTier wraps an already-configured azblob client.
func NewAzureTier(client *azblob.Client, container, prefix string) *AzureTier {
	return &AzureTier{client: client, container: container, prefix: prefix}
}

func (t *AzureTier) Put(ctx context.Context, digestHex string, r io.Reader, size int64) error {
	name := t.blobName(digestHex)
	_, err := t.client.UploadStream(ctx, t.container, name, r, nil)
	if err != nil {
		return fmt.Errorf("remotetier: azblob put %s: %w", name, err)
	}
	return nil
}

func (t *AzureTier) blobName(digestHex string) string {
	if t.prefix == "" {
		return "sha256/" + digestHex
	}
	return t.prefix + "/sha256/" + digestHex
}
