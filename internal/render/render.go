// Package render turns an input document into PNG page images for the
// OCR engines. PDFs are rasterized page by page with pdftoppm, single
// images pass through after re-encoding, and plain text bypasses
// recognition entirely.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	_ "image/jpeg"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"
)

// renderDPI is the rasterization resolution. 144 DPI doubles the PDF
// point grid, which is the sweet spot between tesseract accuracy and
// render time for scanned contracts.
const renderDPI = 144

// Kind is the coarse input type the pipeline branches on.
type Kind int

const (
	KindPDF Kind = iota
	KindImage
	KindText
)

// RenderError marks a page that could not be rasterized. It is the
// one per-page failure the pipeline treats as terminal, since it
// usually means the whole file is corrupt.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Document is an opened input file with a known page count.
type Document struct {
	path  string
	kind  Kind
	pages int
}

// Open prepares a document for page rendering. The MIME type comes
// from upstream validation. PDF structure is checked here so that a
// corrupt file fails before any page work starts.
func Open(path, mime string) (*Document, error) {
	switch mime {
	case "application/pdf":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open PDF: %w", err)
		}
		defer f.Close()
		pages, err := api.PageCount(f, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid or corrupt PDF: %w", err)
		}
		if pages == 0 {
			return nil, fmt.Errorf("PDF has no pages")
		}
		return &Document{path: path, kind: KindPDF, pages: pages}, nil
	case "image/jpeg", "image/png", "image/tiff":
		return &Document{path: path, kind: KindImage, pages: 1}, nil
	case "text/plain":
		return &Document{path: path, kind: KindText, pages: 1}, nil
	default:
		return nil, fmt.Errorf("unsupported document type: %s", mime)
	}
}

// Kind returns the input type.
func (d *Document) Kind() Kind {
	return d.kind
}

// PageCount returns the number of pages to process.
func (d *Document) PageCount() int {
	return d.pages
}

// Text reads the document body for the plain-text fast path.
func (d *Document) Text() (string, error) {
	if d.kind != KindText {
		return "", fmt.Errorf("document is not plain text")
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return "", fmt.Errorf("read text document: %w", err)
	}
	return string(data), nil
}

// RenderPage rasterizes one page (1-based) to PNG bytes.
func (d *Document) RenderPage(ctx context.Context, page int) ([]byte, error) {
	if page < 1 || page > d.pages {
		return nil, &RenderError{Page: page, Err: fmt.Errorf("page out of range 1..%d", d.pages)}
	}
	switch d.kind {
	case KindPDF:
		return d.renderPDFPage(ctx, page)
	case KindImage:
		return d.renderImagePage()
	default:
		return nil, &RenderError{Page: page, Err: fmt.Errorf("document kind has no page images")}
	}
}

// renderPDFPage shells out to pdftoppm (poppler-utils) for one page.
func (d *Document) renderPDFPage(ctx context.Context, page int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "lexocr-page-*")
	if err != nil {
		return nil, &RenderError{Page: page, Err: fmt.Errorf("create temp dir: %w", err)}
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", renderDPI),
		"-singlefile",
		d.path,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &RenderError{Page: page, Err: fmt.Errorf("pdftoppm failed: %w (output: %s)", err, bytes.TrimSpace(output))}
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, &RenderError{Page: page, Err: fmt.Errorf("pdftoppm produced no output: %w", err)}
	}
	return data, nil
}

// renderImagePage normalizes a single-image document to PNG so both
// engines receive the same encoding regardless of the input format.
func (d *Document) renderImagePage() ([]byte, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, &RenderError{Page: 1, Err: fmt.Errorf("read image: %w", err)}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &RenderError{Page: 1, Err: fmt.Errorf("decode image: %w", err)}
	}
	if format == "png" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &RenderError{Page: 1, Err: fmt.Errorf("re-encode image: %w", err)}
	}
	return buf.Bytes(), nil
}
