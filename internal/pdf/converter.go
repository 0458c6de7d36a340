package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/pdf-ocr/internal/domain"
)

// ConverterOptions controls rasterization.
type ConverterOptions struct {
	DPI      float64
	Quality  int // JPEG quality, 1-100
	MaxPages int // 0 means unlimited
}

// Converter implements domain.Rasterizer using go-fitz (MuPDF).
type Converter struct {
	opts      ConverterOptions
	validator *Validator
}

// NewConverter creates a new PDF converter instance
func NewConverter(opts ConverterOptions) *Converter {
	if opts.DPI <= 0 {
		opts.DPI = 144
	}
	if opts.Quality == 0 {
		opts.Quality = 85
	}
	return &Converter{opts: opts, validator: NewValidator(0)}
}

// Rasterize decodes a PDF held in memory and renders every page to JPEG.
// Nothing is written to disk.
func (c *Converter) Rasterize(ctx context.Context, data []byte) ([]domain.PageTask, error) {
	if err := c.validator.ValidateDocument(data); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateQuality(c.opts.Quality); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.ConversionError("Failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ValidationError("PDF has no pages", nil)
	}
	if c.opts.MaxPages > 0 && pageCount > c.opts.MaxPages {
		return nil, domain.ValidationError(
			fmt.Sprintf("PDF has %d pages, limit is %d", pageCount, c.opts.MaxPages), nil)
	}

	pages := make([]domain.PageTask, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, c.opts.DPI)
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("Failed to render page %d", pageNum+1), err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.opts.Quality}); err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("Failed to encode page %d as JPG", pageNum+1), err)
		}

		pages = append(pages, domain.PageTask{
			Index:     pageNum + 1,
			Payload:   buf.Bytes(),
			MediaType: "image/jpeg",
		})
	}

	return pages, nil
}
