// Package pipeline orchestrates a full conversion run: extraction,
// optional OCR, fusion, optional AI enrichment, and document assembly.
// Per-slide stages degrade instead of failing the run; only extraction
// and rendering abort a conversion.
package pipeline

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pptconv/internal/assemble"
	"pptconv/internal/enrich"
	"pptconv/internal/errlog"
	"pptconv/internal/extract"
	"pptconv/internal/fuse"
	"pptconv/internal/ocr"
)

// Worker pool sizes when Options leaves them zero.
const (
	defaultOCRWorkers    = 4
	defaultEnrichWorkers = 3
)

// Options configures a conversion run.
type Options struct {
	Format      string
	OCREngine   ocr.Engine // nil disables OCR
	OCRLanguage string
	OCRWorkers  int

	Enricher      *enrich.Enricher // nil disables AI
	EnrichWorkers int

	// Recorded in the document information block.
	AIService string
	Model     string

	Verbose bool

	// now overrides the generation timestamp in tests.
	now func() time.Time
}

// Stats summarizes what happened during one conversion.
type Stats struct {
	Slides         int
	OCRTexts       int
	FallbackSlides int
}

// Convert runs the full pipeline for one input file and writes the
// result to outputPath. The returned error is *extract.ExtractionError,
// *assemble.RenderError, or a context error; everything else degrades.
func Convert(ctx context.Context, inputPath, outputPath string, opts Options) (Stats, error) {
	var stats Stats

	records, err := (&extract.Extractor{}).ExtractFile(inputPath)
	if err != nil {
		errlog.Logf("extraction failed for %s: %v", inputPath, err)
		return stats, err
	}
	stats.Slides = len(records)
	if opts.Verbose {
		log.Printf("[Pipeline] %s: %d slides extracted", filepath.Base(inputPath), len(records))
	}

	ocrResults := runOCR(ctx, records, opts)
	for _, perSlide := range ocrResults {
		for _, res := range perSlide {
			if res.Found {
				stats.OCRTexts++
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	fused := make([]fuse.FusedContent, len(records))
	for i, rec := range records {
		fused[i] = fuse.Fuse(rec, ocrResults[i])
	}

	enrichments := runEnrichment(ctx, records, fused, opts)
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	for _, e := range enrichments {
		if e.Source == enrich.SourceFallback {
			stats.FallbackSlides++
		}
	}

	doc := buildDocument(inputPath, records, fused, enrichments, opts)

	renderer, err := assemble.ForFormat(opts.Format)
	if err != nil {
		return stats, &assemble.RenderError{Path: outputPath, Err: err}
	}
	if err := assemble.WriteFile(renderer, doc, outputPath); err != nil {
		errlog.Logf("render failed for %s: %v", outputPath, err)
		return stats, err
	}
	return stats, nil
}

// ocrTask addresses one image by slide and image position so results
// can be re-associated after concurrent recognition.
type ocrTask struct {
	slide, image int
	data         []byte
}

// runOCR recognizes every slide image with a bounded worker pool and
// returns results indexed [slide][image]. Without an engine it returns
// empty per-slide slices.
func runOCR(ctx context.Context, records []extract.SlideRecord, opts Options) [][]ocr.Result {
	results := make([][]ocr.Result, len(records))
	for i, rec := range records {
		results[i] = make([]ocr.Result, len(rec.Images))
	}
	if opts.OCREngine == nil || !opts.OCREngine.Available() {
		return results
	}

	var tasks []ocrTask
	for i, rec := range records {
		for j, img := range rec.Images {
			tasks = append(tasks, ocrTask{slide: i, image: j, data: img.Data})
		}
	}
	if len(tasks) == 0 {
		return results
	}

	workers := opts.OCRWorkers
	if workers <= 0 {
		workers = defaultOCRWorkers
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	taskCh := make(chan ocrTask)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				res := opts.OCREngine.Recognize(ctx, task.data, opts.OCRLanguage)
				results[task.slide][task.image] = res
			}
		}()
	}
	for _, task := range tasks {
		select {
		case taskCh <- task:
		case <-ctx.Done():
			close(taskCh)
			wg.Wait()
			return results
		}
	}
	close(taskCh)
	wg.Wait()
	return results
}

// runEnrichment processes slides with a bounded worker pool. Slide order
// is preserved by indexing results, not by completion order.
func runEnrichment(ctx context.Context, records []extract.SlideRecord, fused []fuse.FusedContent, opts Options) []enrich.Enrichment {
	enricher := opts.Enricher
	if enricher == nil {
		enricher = enrich.New(nil, opts.Verbose)
	}

	results := make([]enrich.Enrichment, len(records))
	workers := opts.EnrichWorkers
	if workers <= 0 {
		workers = defaultEnrichWorkers
	}
	if workers > len(records) {
		workers = len(records)
	}
	if workers < 1 {
		return results
	}

	idxCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				results[i] = enricher.Enrich(ctx, records[i], fused[i])
			}
		}()
	}
	for i := range records {
		select {
		case idxCh <- i:
		case <-ctx.Done():
			close(idxCh)
			wg.Wait()
			return results
		}
	}
	close(idxCh)
	wg.Wait()
	return results
}

func buildDocument(inputPath string, records []extract.SlideRecord, fused []fuse.FusedContent, enrichments []enrich.Enrichment, opts Options) *assemble.Document {
	now := time.Now
	if opts.now != nil {
		now = opts.now
	}

	doc := &assemble.Document{
		Title: documentTitle(inputPath),
		Meta: assemble.Meta{
			GeneratedAt: now(),
			AIService:   opts.AIService,
			Model:       opts.Model,
			OCREnabled:  opts.OCREngine != nil,
		},
	}
	for i, rec := range records {
		e := enrichments[i]
		sec := assemble.Section{
			Index:     rec.Index,
			Title:     rec.Title,
			Summary:   e.Summary,
			Content:   e.OrganizedContent,
			KeyPoints: e.KeyPoints,
			Tags:      e.Tags,
		}
		// Raw text is traceability output; only the verbose run carries
		// it (the renderer drops it anyway when identical to content).
		if opts.Verbose {
			sec.Original = fused[i].RawText
		}
		doc.Sections = append(doc.Sections, sec)
	}
	return doc
}

// documentTitle derives the document title from the input file name.
func documentTitle(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
