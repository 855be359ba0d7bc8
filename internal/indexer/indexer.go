// Package indexer walks a documentation tree and feeds every chunk into the
// vector index through the single-document ingestion path.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/metrics"
	"textbook-rag/internal/parser"
	"textbook-rag/internal/progress"
)

// Ingester stores one chunk under id.
type Ingester interface {
	IndexDocument(ctx context.Context, text, source string, id uint64) error
}

type Options struct {
	Include   []string // doublestar patterns relative to the root
	ChunkSize int
	MinLength int // trimmed runes below which a document is skipped
	StartID   uint64
	Parse     parser.Options
}

// Summary reports what a run did. NextID is the first id not used.
type Summary struct {
	FilesSeen     int    `json:"files_seen"`
	FilesIndexed  int    `json:"files_indexed"`
	FilesSkipped  int    `json:"files_skipped"`
	FilesFailed   int    `json:"files_failed"`
	ChunksIndexed int    `json:"chunks_indexed"`
	ChunkFailures int    `json:"chunk_failures"`
	FirstID       uint64 `json:"first_id"`
	NextID        uint64 `json:"next_id"`
}

type Pipeline struct {
	ingester Ingester
	opts     Options
	reporter progress.Reporter
}

func NewPipeline(ingester Ingester, opts Options, reporter progress.Reporter) *Pipeline {
	if len(opts.Include) == 0 {
		opts.Include = []string{"**/*.md"}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = parser.DefaultChunkSize
	}
	if opts.StartID == 0 {
		opts.StartID = 1
	}
	if reporter == nil {
		reporter = progress.Nop{}
	}
	return &Pipeline{ingester: ingester, opts: opts, reporter: reporter}
}

// Files returns the files under root matching the include patterns, sorted,
// as slash-separated paths relative to root.
func (p *Pipeline) Files(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read docs directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docs path %s is not a directory", root)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range p.opts.Include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run indexes every matching file under root. Failures of a single file or
// chunk are logged and counted; the run continues. Ids are assigned in file
// order and advance once per attempted chunk.
func (p *Pipeline) Run(ctx context.Context, root string) (Summary, error) {
	files, err := p.Files(root)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{FilesSeen: len(files), FirstID: p.opts.StartID, NextID: p.opts.StartID}
	log.Info().Str("root", root).Int("files", len(files)).Uint64("start_id", p.opts.StartID).Msg("Indexing documents")

	p.reporter.Start(len(files))
	defer p.reporter.Finish()

	for i, rel := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		p.reporter.Update(i+1, rel)
		p.indexFile(ctx, root, rel, &summary)
	}

	log.Info().
		Int("files_indexed", summary.FilesIndexed).
		Int("files_skipped", summary.FilesSkipped).
		Int("files_failed", summary.FilesFailed).
		Int("chunks_indexed", summary.ChunksIndexed).
		Int("chunk_failures", summary.ChunkFailures).
		Uint64("first_id", summary.FirstID).
		Uint64("next_id", summary.NextID).
		Msg("Indexing finished")
	return summary, nil
}

func (p *Pipeline) indexFile(ctx context.Context, root, rel string, summary *Summary) {
	logger := log.With().Str("file", rel).Logger()

	content, err := parser.ParseFile(filepath.Join(root, filepath.FromSlash(rel)), p.opts.Parse)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse file")
		summary.FilesFailed++
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(content)) < p.opts.MinLength {
		logger.Debug().Msg("Skipping short document")
		summary.FilesSkipped++
		return
	}

	chunks := parser.SplitContent(content, p.opts.ChunkSize)
	labels := parser.PartLabels(rel, len(chunks))

	failed := 0
	for i, chunk := range chunks {
		id := summary.NextID
		summary.NextID++
		if err := p.ingester.IndexDocument(ctx, chunk, labels[i], id); err != nil {
			logger.Error().Err(err).Uint64("id", id).Str("source", labels[i]).Msg("Failed to index chunk")
			metrics.IndexedChunks.WithLabelValues("failed").Inc()
			failed++
			continue
		}
		metrics.IndexedChunks.WithLabelValues("ok").Inc()
		summary.ChunksIndexed++
	}
	summary.ChunkFailures += failed

	if failed == len(chunks) {
		summary.FilesFailed++
		return
	}
	summary.FilesIndexed++
	logger.Debug().Int("chunks", len(chunks)).Msg("Indexed file")
}
