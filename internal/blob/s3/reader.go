package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/edgescout/edgescout/internal/domain"
)

// Reader retrieves archived run objects, used by the status server to serve
// reports for runs that have aged out of the primary store.
type Reader struct {
	client *s3.Client
	bucket string
}

func NewReader(c *Client) *Reader {
	return &Reader{client: c.S3(), bucket: c.Bucket()}
}

// Get returns the object body for the given key. The caller closes the
// reader. Missing objects map to domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	return out.Body, nil
}

// Report fetches the archived markdown report for a run.
func (r *Reader) Report(ctx context.Context, runID string) (io.ReadCloser, error) {
	return r.Get(ctx, ReportKey(runID))
}

// isNotFound matches both the typed NoSuchKey error and the bare 404 that
// HeadObject and some compatible providers return.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	type httpStatus interface {
		HTTPStatusCode() int
	}
	var he httpStatus
	return errors.As(err, &he) && he.HTTPStatusCode() == 404
}
