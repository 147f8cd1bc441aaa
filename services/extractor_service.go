package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/schema"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github/itish2003/pdfchat/vectorstore"
)

// Extractor backends.
const (
	BackendUniPDF = "unipdf"
	BackendPlain  = "ledongthuc"
)

// MetaTotalPages is set on every page document next to source and page.
const MetaTotalPages = "total_pages"

// pageReader returns the text of every page of a PDF, in order.
type pageReader func(ctx context.Context, path string) ([]string, error)

// PDFLoader turns PDF files into one langchaingo document per page.
type PDFLoader struct {
	readPages pageReader
	backend   string
	log       *logrus.Entry
}

// NewPDFLoader picks UniPDF when a license key is given and accepted, and the
// pure-Go ledongthuc reader otherwise.
func NewPDFLoader(unidocLicenseKey string) *PDFLoader {
	entry := logrus.WithField("component", "pdf-loader")
	if unidocLicenseKey != "" {
		if err := license.SetMeteredKey(unidocLicenseKey); err != nil {
			entry.Warnf("Failed to set Unidoc license key: %v. Falling back to %s.", err, BackendPlain)
		} else {
			return &PDFLoader{readPages: readPagesUniPDF, backend: BackendUniPDF, log: entry}
		}
	}
	return &PDFLoader{readPages: readPagesPlain, backend: BackendPlain, log: entry}
}

// Backend names the extractor in use.
func (l *PDFLoader) Backend() string { return l.backend }

// LoadDirectory loads every *.pdf directly inside dir, in name order. Files
// that fail to parse are logged and skipped.
func (l *PDFLoader) LoadDirectory(ctx context.Context, dir string) ([]schema.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not read PDF directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && IsPDF(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	docs := []schema.Document{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := l.LoadFile(ctx, path)
		if err != nil {
			l.log.Warnf("Skipping %s: %v", path, err)
			continue
		}
		docs = append(docs, pages...)
	}
	l.log.Infof("Loaded %d pages from %d PDF files in %s", len(docs), len(paths), dir)
	return docs, nil
}

// LoadFile loads a single PDF. Whitespace-only pages are dropped, page numbers
// are 0-based.
func (l *PDFLoader) LoadFile(ctx context.Context, path string) ([]schema.Document, error) {
	texts, err := l.readPages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("could not extract text from %s: %w", path, err)
	}
	docs := make([]schema.Document, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: text,
			Metadata: map[string]any{
				vectorstore.MetaSource: path,
				vectorstore.MetaPage:   i,
				MetaTotalPages:         len(texts),
			},
		})
	}
	return docs, nil
}

// IsPDF reports whether path has a .pdf extension, in any case.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func readPagesPlain(ctx context.Context, path string) (pages []string, err error) {
	// The reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, 0, n)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func readPagesUniPDF(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, err
	}
	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, err
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
