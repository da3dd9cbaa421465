package storage

import (
	"context"
	"io"
)

// Object identifies a staged upload.
type Object struct {
	Name string
	Size int64
}

// Scratch holds uploaded documents only for the lifetime of one request.
// Delete of an object that is already gone is not an error.
type Scratch interface {
	Put(ctx context.Context, name string, r io.Reader) (Object, error)
	Read(ctx context.Context, obj Object) ([]byte, error)
	Delete(ctx context.Context, obj Object) error
}
