// Package storage keeps map images in an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ImageStore puts and removes image blobs addressed by public URL.
type ImageStore interface {
	// Put stores r under key and returns the public URL of the object.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object a URL previously returned by Put points at.
	Delete(ctx context.Context, objectURL string) error
}

// ErrForeignObject marks a URL that does not point into the store's bucket.
// There is no blob behind it to remove.
var ErrForeignObject = errors.New("object url is outside the bucket")

// ObjectURL joins the public base URL, bucket and key.
func ObjectURL(baseURL, bucket, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + bucket + "/" + key
}

// KeyFromURL derives the object key by stripping the leading /<bucket>/ from
// the URL path.
func KeyFromURL(objectURL, bucket string) (string, error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", fmt.Errorf("parse object url %q: %w", objectURL, ErrForeignObject)
	}
	prefix := "/" + bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) || len(u.Path) == len(prefix) {
		return "", fmt.Errorf("object url %q, bucket %q: %w", objectURL, bucket, ErrForeignObject)
	}
	return strings.TrimPrefix(u.Path, prefix), nil
}
