package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"intake/pkg/platform/retry"
	"intake/pkg/requestcontext"
)

// GCSStore stores blobs in one Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
	policy retry.Policy
	logger *slog.Logger
}

// GCSOption customises a GCSStore.
type GCSOption func(*GCSStore)

// WithRetryPolicy overrides the transient-failure retry policy.
func WithRetryPolicy(p retry.Policy) GCSOption {
	return func(s *GCSStore) {
		s.policy = p
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) GCSOption {
	return func(s *GCSStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGCSStore constructs a store backed by the provided Cloud Storage client.
func NewGCSStore(client *gcs.Client, bucket string, opts ...GCSOption) (*GCSStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	s := &GCSStore{
		client: client,
		bucket: bucket,
		policy: retry.DefaultPolicy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Upload writes data under a fresh object name and returns its locator.
// The write is conditioned on the object not existing, so a retry after an
// ambiguous failure cannot duplicate or clobber it.
func (s *GCSStore) Upload(ctx context.Context, data []byte, name, contentType string) (string, error) {
	object := ObjectName(requestcontext.Now(ctx), name)
	obj := s.client.Bucket(s.bucket).Object(object).If(gcs.Conditions{DoesNotExist: true})

	attempt := 0
	err := retry.Do(ctx, s.policy, IsTransient, func(ctx context.Context) error {
		attempt++
		w := obj.NewWriter(ctx)
		w.ContentType = contentType
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return err
		}
		err := w.Close()
		if attempt > 1 && isPreconditionFailed(err) {
			// an earlier attempt committed before its response was lost
			return nil
		}
		if err != nil {
			s.logger.WarnContext(ctx, "blob upload attempt failed",
				"object", object,
				"attempt", attempt,
				"error", err,
			)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	return GCSLocator(s.bucket, object), nil
}

// Delete removes the object behind locator. A missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, locator string) error {
	bucket, object, err := ParseGCSLocator(locator)
	if err != nil {
		return err
	}
	if bucket != s.bucket {
		return fmt.Errorf("storage: locator bucket %q does not match %q", bucket, s.bucket)
	}
	err = retry.Do(ctx, s.policy, IsTransient, func(ctx context.Context) error {
		err := s.client.Bucket(bucket).Object(object).Delete(ctx)
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", object, err)
	}
	return nil
}

// IsTransient reports whether err is worth retrying: rate limiting, server
// errors, and network timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
