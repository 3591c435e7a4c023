package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/mikey/teethanalyzer/internal/core"
)

const fileField = "file"

// readUploads parses the multipart body and returns every "file" part
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([][]byte, error) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, &core.ValidationError{Field: fileField, Message: fmt.Sprintf("expected a multipart upload: %v", err)}
	}

	headers := r.MultipartForm.File[fileField]
	if len(headers) == 0 {
		return nil, &core.ValidationError{Field: fileField, Message: "no file uploaded"}
	}

	images := make([][]byte, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}

// readUpload returns the first uploaded file
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	images, err := s.readUploads(w, r)
	if err != nil {
		return nil, err
	}
	return images[0], nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}

// sampleCount reads num_samples from the query or form, falling back to the default
func (s *Server) sampleCount(r *http.Request) (int, error) {
	raw := r.FormValue("num_samples")
	if raw == "" {
		return s.opts.DefaultSamples, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &core.ValidationError{Field: "num_samples", Message: fmt.Sprintf("not an integer: %q", raw)}
	}
	return n, nil
}
