package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// maxUploadSize bounds files accepted by Upload
const maxUploadSize = 10 << 20

// ErrUploadTooLarge is returned for files over the upload limit
var ErrUploadTooLarge = errors.New("file exceeds 10 MB upload limit")

// Upload sends a file to the media endpoint and returns its public URL.
// The body is buffered so that a retry can resend it.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return "", fmt.Errorf("failed to create form: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(r, maxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if n > maxUploadSize {
		return "", ErrUploadTooLarge
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish form: %w", err)
	}

	body, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/upload",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := jsonUnmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", errors.New("upload response without url")
	}
	return resp.URL, nil
}
