package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Reader implements domain.BlobReader.
type Reader struct {
	client *Client
}

// NewReader creates a Reader on the client's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{client: c}
}

// Get returns the object body; the caller closes it. A missing object yields
// domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	output, err := r.client.S3().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.client.Bucket()),
		Key:    aws.String(r.client.Key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", path, err)
	}
	return output.Body, nil
}

// List returns every object under prefix, following continuation tokens.
func (r *Reader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo

	paginator := s3.NewListObjectsV2Paginator(r.client.S3(), &s3.ListObjectsV2Input{
		Bucket: aws.String(r.client.Bucket()),
		Prefix: aws.String(r.client.Key(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			info := domain.BlobInfo{
				Path: r.client.Path(aws.ToString(obj.Key)),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// Exists reports whether an object is present at path.
func (r *Reader) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.client.S3().HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.client.Bucket()),
		Key:    aws.String(r.client.Key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3blob: exists %s: %w", path, err)
	}
	return true, nil
}

// ReadReceipt loads a receipt written by ArchiveReceipt.
func ReadReceipt(ctx context.Context, r domain.BlobReader, path string) (domain.Settlement, error) {
	body, err := r.Get(ctx, path)
	if err != nil {
		return domain.Settlement{}, err
	}
	defer body.Close()

	var s domain.Settlement
	if err := json.NewDecoder(body).Decode(&s); err != nil {
		return domain.Settlement{}, fmt.Errorf("s3blob: decode receipt %s: %w", path, err)
	}
	return s, nil
}

// ReceiptIndex finds archived receipts by listing address.
type ReceiptIndex struct {
	reader domain.BlobReader
}

// NewReceiptIndex creates a ReceiptIndex over reader.
func NewReceiptIndex(reader domain.BlobReader) *ReceiptIndex {
	return &ReceiptIndex{reader: reader}
}

// FindReceipt scans the receipt partitions for listing. The newest
// partition is checked first; domain.ErrNotFound when none holds it.
func (x *ReceiptIndex) FindReceipt(ctx context.Context, listing solana.PublicKey) (domain.Settlement, error) {
	infos, err := x.reader.List(ctx, receiptPrefix)
	if err != nil {
		return domain.Settlement{}, err
	}
	suffix := "/" + listing.String() + ".json"
	for i := len(infos) - 1; i >= 0; i-- {
		if strings.HasSuffix(infos[i].Path, suffix) {
			return ReadReceipt(ctx, x.reader, infos[i].Path)
		}
	}
	return domain.Settlement{}, fmt.Errorf("s3blob: receipt %s: %w", listing, domain.ErrNotFound)
}

// isNotFound matches both NoSuchKey from GetObject and the bare 404 that
// HeadObject and several compatible providers return.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}
