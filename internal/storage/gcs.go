package storage

import (
	"context"
	"errors"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// GCSScratch stages uploads as objects under Prefix in a bucket.
type GCSScratch struct {
	client *gcs.Client
	bucket string
	prefix string

	// newWriter opens an object writer. Cancelling ctx before Close aborts
	// the upload instead of committing it.
	newWriter func(ctx context.Context, objectName string) io.WriteCloser
}

func NewGCSScratch(ctx context.Context, bucket, credentialsFile string) (*GCSScratch, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	s := &GCSScratch{client: c, bucket: bucket, prefix: "uploads"}
	s.newWriter = s.objectWriter
	return s, nil
}

func (s *GCSScratch) objectWriter(ctx context.Context, objectName string) io.WriteCloser {
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/pdf"
	return w
}

func (s *GCSScratch) Close() error { return s.client.Close() }

func (s *GCSScratch) Put(ctx context.Context, name string, r io.Reader) (Object, error) {
	objectName := path.Join(s.prefix, uuid.NewString()+"-"+safeName(name))

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := s.newWriter(wctx, objectName)

	n, err := io.Copy(w, r)
	if err != nil {
		// abort so a partial object is never committed
		cancel()
		_ = w.Close()
		return Object{}, err
	}
	if err := w.Close(); err != nil {
		return Object{}, err
	}
	return Object{Name: objectName, Size: n}, nil
}

func (s *GCSScratch) Read(ctx context.Context, obj Object) ([]byte, error) {
	rc, err := s.client.Bucket(s.bucket).Object(obj.Name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *GCSScratch) Delete(ctx context.Context, obj Object) error {
	err := s.client.Bucket(s.bucket).Object(obj.Name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return err
	}
	return nil
}
