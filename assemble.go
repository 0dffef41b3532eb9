package html2pdf

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// reclaimEvery is how many source buffers are copied between GC hints.
const reclaimEvery = 10

var disableConfigDir sync.Once

// Document is the merged output.
type Document struct {
	PDF       []byte
	PageCount int
}

// Assembler merges per-page PDF buffers into one document with pdfcpu.
type Assembler struct {
	ReclaimEvery int
	Logger       *zap.Logger
}

// NewAssembler returns an Assembler with the default reclaim interval.
func NewAssembler(logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	// pdfcpu otherwise creates a config directory under $HOME on first use.
	disableConfigDir.Do(api.DisableConfigDir)
	return &Assembler{ReclaimEvery: reclaimEvery, Logger: logger}
}

// config returns a tolerant pdfcpu configuration.
// Bookmarks stay off: rendered pages carry no outline to merge into.
func (a *Assembler) config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.MERGECREATE
	conf.CreateBookmarks = false
	return conf
}

// Merge appends the pages of every buffer, in order, to a new document.
// The assembler takes ownership of buffers: entries are released (set to
// nil) as soon as their pages have been copied.
func (a *Assembler) Merge(ctx context.Context, buffers [][]byte) (*Document, error) {
	if len(buffers) == 0 {
		return nil, &Error{Kind: KindRender, Message: "No pages were rendered", Err: ErrNoPages}
	}

	conf := a.config()
	var dest *model.Context
	pageCount := 0

	for i := range buffers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src, err := api.ReadValidateAndOptimize(bytes.NewReader(buffers[i]), conf)
		if err != nil {
			return nil, invalidBuffer(i, err)
		}
		pageCount += src.PageCount

		if dest == nil {
			dest = src
			dest.EnsureVersionForWriting()
		} else if err := pdfcpu.MergeXRefTables("", src, dest, false, false); err != nil {
			return nil, &Error{
				Kind:    KindRender,
				Message: fmt.Sprintf("Page %d could not be merged into the document", i+1),
				Details: err.Error(),
				Err:     fmt.Errorf("%w: %w", ErrInvalidPDF, err),
			}
		}
		buffers[i] = nil

		if a.ReclaimEvery > 0 && (i+1)%a.ReclaimEvery == 0 && i+1 < len(buffers) {
			a.Logger.Debug("reclaiming merged buffers", zap.Int("merged", i+1), zap.Int("total", len(buffers)))
			runtime.GC()
		}
	}

	var out bytes.Buffer
	if err := api.WriteContext(dest, &out); err != nil {
		return nil, &Error{
			Kind:    KindRender,
			Message: "The merged document could not be written",
			Details: err.Error(),
			Err:     err,
		}
	}

	return &Document{PDF: out.Bytes(), PageCount: pageCount}, nil
}

func invalidBuffer(index int, err error) *Error {
	return &Error{
		Kind:    KindRender,
		Message: fmt.Sprintf("Page %d produced an invalid PDF", index+1),
		Details: err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrInvalidPDF, err),
	}
}
