package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-ocr/internal/domain"
)

func TestValidator_ValidateFilename(t *testing.T) {
	v := NewValidator(0)

	assert.NoError(t, v.ValidateFilename("brochure.PDF"))
	assert.Error(t, v.ValidateFilename(""))
	assert.Error(t, v.ValidateFilename("scan.png"))
}

func TestValidator_ValidateDocument(t *testing.T) {
	tests := []struct {
		name     string
		maxBytes int64
		data     []byte
		wantErr  bool
	}{
		{name: "valid header", data: []byte("%PDF-1.7\n...")},
		{name: "header after preamble", data: append(bytes.Repeat([]byte{' '}, 100), []byte("%PDF-1.4")...)},
		{name: "empty", data: nil, wantErr: true},
		{name: "not a pdf", data: []byte("PK\x03\x04zip"), wantErr: true},
		{name: "too large", maxBytes: 8, data: []byte("%PDF-1.7 and more"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidator(tt.maxBytes).ValidateDocument(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidator_ValidateQuality(t *testing.T) {
	v := NewValidator(0)
	assert.NoError(t, v.ValidateQuality(85))
	assert.Error(t, v.ValidateQuality(0))
	assert.Error(t, v.ValidateQuality(101))
}

func TestConverter_RejectsNonPDF(t *testing.T) {
	c := NewConverter(ConverterOptions{})

	_, err := c.Rasterize(context.Background(), []byte("definitely not a pdf"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}
