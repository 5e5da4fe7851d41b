package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"sync/atomic"
)

// ProgressFunc receives the cumulative number of source bytes handed to the
// transport. It is called from the body-writing goroutine.
type ProgressFunc func(sent int64)

// countingReader reports bytes read through it
type countingReader struct {
	r        io.Reader
	n        atomic.Int64
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		total := c.n.Add(int64(n))
		if c.progress != nil {
			c.progress(total)
		}
	}
	return n, err
}

// Upload sends one file to directory targetDir as the multipart form the
// uploader expects: a "path" field followed by a "files[]" part.
//
// The body is streamed through a pipe, so the request is torn down as soon as
// ctx is cancelled; the returned error then satisfies IsCanceled. Upload
// returns only after the body writer has stopped, so progress is never
// reported and src is never read after it returns.
func (c *Client) Upload(ctx context.Context, targetDir, name string, src io.Reader, progress ProgressFunc) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	counter := &countingReader{r: src, progress: progress}

	written := make(chan struct{})
	go func() {
		defer close(written)
		err := writeUploadBody(mw, targetDir, name, counter)
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, nethttp.MethodPost, "upload", nil, pr)
	if err != nil {
		pr.Close()
		<-written
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(c.uploadClient, "upload", req)
	// Unblocks the writer if the transport stopped reading early
	pr.CloseWithError(io.ErrClosedPipe)
	<-written
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug().Str("name", name).Str("target", targetDir).Int64("bytes", counter.n.Load()).Msg("upload complete")
	return nil
}

func writeUploadBody(mw *multipart.Writer, targetDir, name string, src io.Reader) error {
	if err := mw.WriteField("path", targetDir); err != nil {
		return fmt.Errorf("failed to write path field: %w", err)
	}
	part, err := mw.CreateFormFile("files[]", name)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to stream %s: %w", name, err)
	}
	return mw.Close()
}
