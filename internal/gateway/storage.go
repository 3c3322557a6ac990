package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Bucket addresses one object storage bucket
type Bucket struct {
	client *Client
	name   string
}

// Storage returns a handle for bucket
func (c *Client) Storage(bucket string) *Bucket {
	return &Bucket{client: c, name: bucket}
}

// Name returns the bucket name
func (b *Bucket) Name() string {
	return b.name
}

// Upload stores body at path. An existing object at path is an error.
func (b *Bucket) Upload(ctx context.Context, path string, body io.Reader, contentType string) error {
	path = cleanObjectPath(path)
	if path == "" {
		return &Error{Code: "invalid_path", Message: "upload: empty object path"}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := b.client.do(ctx, request{
		op:     "storage_upload",
		method: http.MethodPost,
		path:   storagePrefix + "/object/" + b.name + "/" + path,
		header: http.Header{
			"Content-Type": {contentType},
			"X-Upsert":     {"false"},
		},
		body: body,
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", b.name, path, err)
	}
	return nil
}

type removeRequest struct {
	Prefixes []string `json:"prefixes"`
}

// Remove deletes the objects at paths
func (b *Bucket) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = cleanObjectPath(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}

	body, err := jsonBody(removeRequest{Prefixes: cleaned})
	if err != nil {
		return err
	}

	_, err = b.client.do(ctx, request{
		op:     "storage_remove",
		method: http.MethodDelete,
		path:   storagePrefix + "/object/" + b.name,
		body:   body,
	})
	if err != nil {
		return fmt.Errorf("remove from %s: %w", b.name, err)
	}
	return nil
}

// PublicURL resolves the public address of path. It makes no remote call and
// does not check that the object exists.
func (b *Bucket) PublicURL(path string) string {
	segments := strings.Split(cleanObjectPath(path), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return b.publicPrefix() + strings.Join(segments, "/")
}

// PathFromPublicURL reverses PublicURL
func (b *Bucket) PathFromPublicURL(publicURL string) (string, bool) {
	rest, ok := strings.CutPrefix(publicURL, b.publicPrefix())
	if !ok || rest == "" {
		return "", false
	}
	path, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return path, true
}

func (b *Bucket) publicPrefix() string {
	return b.client.baseURL.String() + storagePrefix + "/object/public/" + url.PathEscape(b.name) + "/"
}

func cleanObjectPath(p string) string {
	return strings.Trim(p, "/")
}
