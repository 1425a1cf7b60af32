package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage reads seed data from S3-compatible object stores.
// Objects are streamed; nothing is staged on local disk.

// ErrObjectNotFound is returned by Get when the key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Storage is a read-only, S3-compatible object storage client interface.
type Storage interface {
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
}
