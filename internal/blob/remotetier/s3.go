package remotetier

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Tier mirrors blobs into an S3 bucket under sha256/<hex> keys,
// matching the local on-disk shard layout minus the two-level fan-out
// (S3 doesn't need it — prefix sharding there is for request routing,
// not filesystem inode limits).
type S3Tier struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Tier wraps an already-configured S3 client (cmd/orca's
// buildRemoteTier resolves credentials/region the standard
// aws-sdk-go-v2 way, via config.LoadDefaultConfig).
func NewS3Tier(client *s3.Client, bucket, prefix string) *S3Tier {
	return &S3Tier{client: client, bucket: bucket, prefix: prefix}
}

func (t *S3Tier) Put(ctx context.Context, digestHex string, r io.Reader, size int64) error {
	key := t.key(digestHex)
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("remotetier: s3 put %s: %w", key, err)
	}
	return nil
}

func (t *S3Tier) key(digestHex string) string {
	if t.prefix == "" {
		return "sha256/" + digestHex
	}
	return t.prefix + "/sha256/" + digestHex
}
