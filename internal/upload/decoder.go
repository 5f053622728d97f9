package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// FileField is the multipart field name under which image files are sent.
	FileField = "images"
	// MaxFileParts is the maximum number of file parts accepted from a request.
	MaxFileParts = 6
	// MaxImages is the number of images the pipeline processes per listing.
	// Parts beyond this are dropped without error.
	MaxImages = 2
	// MaxFileSize is the per-file size ceiling (10 MiB).
	MaxFileSize = 10 * 1024 * 1024
	// maxFieldSize bounds text field values so a hostile form can't exhaust memory.
	maxFieldSize = 64 * 1024
)

var (
	// ErrPayloadTooLarge indicates a file part exceeded MaxFileSize.
	ErrPayloadTooLarge = errors.New("file exceeds size limit")
	// ErrMalformed indicates the multipart body could not be parsed.
	ErrMalformed = errors.New("malformed multipart upload")
)

// Image is a single accepted file part, held fully in memory.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Form is the result of decoding a multipart request.
type Form struct {
	Fields map[string][]string
	Images []Image
}

// Decode reads a multipart/form-data request into a Form. File parts must
// arrive under FileField and declare an image/* content type; non-image parts
// are dropped silently. A part exceeding MaxFileSize fails the whole decode.
// More than MaxFileParts file parts fails the decode. After a successful
// parse the accepted images are truncated to MaxImages.
func Decode(r *http.Request) (*Form, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	form := &Form{Fields: make(map[string][]string)}
	fileParts := 0

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			part.Close()
			if err != nil {
				return nil, fmt.Errorf("%w: reading field %q: %v", ErrMalformed, part.FormName(), err)
			}
			form.Fields[part.FormName()] = append(form.Fields[part.FormName()], string(value))
			continue
		}

		if part.FormName() != FileField {
			part.Close()
			continue
		}

		fileParts++
		if fileParts > MaxFileParts {
			part.Close()
			return nil, fmt.Errorf("%w: more than %d file parts", ErrMalformed, MaxFileParts)
		}

		contentType := part.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, MaxFileSize+1))
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading file %q: %v", ErrMalformed, part.FileName(), err)
		}
		if len(data) > MaxFileSize {
			return nil, fmt.Errorf("%w: %q is over %d bytes", ErrPayloadTooLarge, part.FileName(), MaxFileSize)
		}

		form.Images = append(form.Images, Image{
			Filename:    part.FileName(),
			ContentType: contentType,
			Data:        data,
		})
	}

	if len(form.Images) > MaxImages {
		form.Images = form.Images[:MaxImages]
	}

	return form, nil
}
