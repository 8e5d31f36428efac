package httputil

import (
	"errors"
	"io"
	"net/http"
)

// ErrFileTooLarge is returned when an uploaded file exceeds the allowed size.
var ErrFileTooLarge = errors.New("uploaded file too large")

// ReadFormFile returns the contents of the first file present among fields
// of a parsed multipart form, or nil when none was uploaded.
func ReadFormFile(r *http.Request, maxSize int64, fields ...string) ([]byte, error) {
	for _, field := range fields {
		file, _, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, err
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > maxSize {
			return nil, ErrFileTooLarge
		}
		return data, nil
	}
	return nil, nil
}
