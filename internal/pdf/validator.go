package pdf

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spherical/pdf-ocr/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Validator provides input validation for uploaded PDF documents
type Validator struct {
	maxBytes int64
}

// NewValidator creates a validator. maxBytes <= 0 disables the size check.
func NewValidator(maxBytes int64) *Validator {
	return &Validator{maxBytes: maxBytes}
}

// ValidateFilename rejects uploads that do not carry a .pdf extension
func (v *Validator) ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.ValidationError("file name cannot be empty", nil)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %q)", ext), nil)
	}
	return nil
}

// ValidateDocument checks size and the PDF header
func (v *Validator) ValidateDocument(data []byte) error {
	if len(data) == 0 {
		return domain.ValidationError("document is empty", nil)
	}

	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return domain.ValidationError(
			fmt.Sprintf("document is %d MB, limit is %d MB", len(data)/(1024*1024), v.maxBytes/(1024*1024)), nil)
	}

	// Readers accept the header anywhere in the first 1024 bytes.
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfMagic) {
		return domain.ValidationError("document does not have a PDF header", nil)
	}

	return nil
}

// ValidateQuality validates image quality parameter
func (v *Validator) ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return domain.ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", quality), nil)
	}
	return nil
}
