package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/poiesic/docscope"
	"github.com/poiesic/docscope/config"
	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/extract/ocr"
	"github.com/poiesic/docscope/extract/ocr/fitz"
	"github.com/poiesic/docscope/extract/ocr/tesseract"
	"github.com/poiesic/docscope/reembed"
	"github.com/poiesic/docscope/scope"
	"github.com/poiesic/docscope/search"
	"github.com/urfave/cli/v2"
)

// openOptions are appended to every Open; tests use them to swap collaborators.
var openOptions []docscope.Option

// loadConfig reads --config and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
	}
	return cfg, nil
}

// openService loads the configuration and opens the service with OCR
// wired in when enabled.
func openService(c *cli.Context) (*docscope.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	opts := append([]docscope.Option{}, openOptions...)
	if cfg.OCR.Enabled {
		engine, err := ocr.NewEngine(fitz.Rasterizer{},
			tesseract.New(
				tesseract.WithLanguages(cfg.OCR.Languages...),
				tesseract.WithLineBoxes(cfg.OCR.LineBoxes)),
			ocr.WithDPI(cfg.OCR.DPI),
			ocr.WithBatchSize(cfg.OCR.BatchSize),
			ocr.WithPageTimeout(cfg.OCR.PageTimeout.Duration))
		if err != nil {
			return nil, fmt.Errorf("failed to create OCR engine: %w", err)
		}
		opts = append(opts, docscope.WithOCR(engine))
	}

	svc, err := docscope.Open(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open docscope: %w", err)
	}
	return svc, nil
}

func indexCommand(c *cli.Context) error {
	ctx := context.Background()

	path := c.Args().First()
	if path == "" {
		return errors.New("file argument is required")
	}
	name := c.String("name")
	if name == "" {
		name = filepath.Base(path)
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if !c.Bool("async") {
		ok, err := svc.IndexDocument(ctx, path, name, c.String("owner"))
		if err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}
		if !ok {
			return errors.New("indexing failed")
		}
		docs, err := svc.Documents(ctx, c.String("owner"))
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if doc.Name == name {
				printDocument(c, doc)
			}
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	id, err := svc.Submit(ctx, data, name, c.String("owner"))
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Accepted %s\n", id)

	ticker := time.NewTicker(c.Duration("poll-interval"))
	defer ticker.Stop()
	last := core.DocumentStatus(-1)
	for range ticker.C {
		doc, err := svc.Document(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != last {
			fmt.Fprintf(c.App.ErrWriter, "Status: %s\n", doc.Status)
			last = doc.Status
		}
		switch doc.Status {
		case core.StatusReady:
			printDocument(c, doc)
			return nil
		case core.StatusFailed:
			return fmt.Errorf("indexing failed: %s", doc.Error)
		}
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := c.Args().First()
	if query == "" {
		return errors.New("query argument is required")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	mode := svc.Config().Mode()
	if m := c.String("mode"); m != "" {
		if mode, err = scope.ParseMode(m); err != nil {
			return err
		}
	}
	sc := scope.Scope{OwnerID: c.String("owner"), DocumentName: c.String("document"), Mode: mode}

	resp, err := svc.Search(ctx, query, sc, c.Int("top"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(c, resp)
	return nil
}

func statusCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("document id argument is required")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	doc, err := svc.Document(context.Background(), core.DocumentID(id))
	if err != nil {
		return fmt.Errorf("failed to get document %s: %w", id, err)
	}
	printDocument(c, doc)
	return nil
}

func documentsCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	docs, err := svc.Documents(context.Background(), c.String("owner"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tOWNER\tSTATUS\tPAGES\tCHUNKS")
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d/%d\n",
			doc.ID, doc.Name, doc.OwnerID, doc.Status, doc.PageCount, doc.IndexedChunks, doc.TotalChunks)
	}
	return w.Flush()
}

func statsCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("document id argument is required")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.Stats(context.Background(), core.DocumentID(id))
	if err != nil {
		return fmt.Errorf("failed to get stats for %s: %w", id, err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Document: %s\n", stats.DocumentID)
	fmt.Fprintf(out, "Chunks:   %d\n", stats.Chunks)
	fmt.Fprintf(out, "Tokens:   %d\n", stats.Tokens)
	fmt.Fprintf(out, "Pages:    %d-%d\n", stats.FirstPage, stats.LastPage)
	fmt.Fprintf(out, "Images:   %d\n", stats.Images)
	fmt.Fprintf(out, "Fallback: %d\n", stats.FallbackChunks)
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	cfg := svc.Config()
	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := svc.Reembed(ctx, reembedConfig, c.App.ErrWriter); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func printDocument(c *cli.Context, doc *core.Document) {
	out := c.App.Writer
	fmt.Fprintf(out, "ID:      %s\n", doc.ID)
	fmt.Fprintf(out, "Name:    %s\n", doc.Name)
	if doc.OwnerID != "" {
		fmt.Fprintf(out, "Owner:   %s\n", doc.OwnerID)
	}
	fmt.Fprintf(out, "Status:  %s\n", doc.Status)
	if doc.Error != "" {
		fmt.Fprintf(out, "Error:   %s\n", doc.Error)
	}
	fmt.Fprintf(out, "Pages:   %d (%s)\n", doc.PageCount, doc.Method)
	fmt.Fprintf(out, "Chunks:  %d of %d indexed\n", doc.IndexedChunks, doc.TotalChunks)
}

func printResponse(c *cli.Context, resp *search.Response) {
	out := c.App.Writer
	switch {
	case resp.ScopeViolation:
		fmt.Fprintln(out, "No results: guarded search requires --owner")
		return
	case resp.Degraded:
		fmt.Fprintf(out, "Search unavailable: %s\n", resp.Error)
		return
	case len(resp.Results) == 0:
		fmt.Fprintln(out, "No results")
		return
	}
	for i, r := range resp.Results {
		ref := r.LineReference
		if r.Precision == "approximate" {
			ref += " (approximate)"
		}
		fmt.Fprintf(out, "%d. %s (%s, chunk %d/%d, score %.3f)\n",
			i+1, r.Filename, ref, r.ChunkIndex, r.TotalChunks, r.Score)
		fmt.Fprintf(out, "   %s\n", snippet(r.Content, 200))
	}
	backend := resp.Backend
	if resp.KeywordOnly {
		backend += " (keyword only)"
	}
	fmt.Fprintf(c.App.ErrWriter, "Backend: %s\n", backend)
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
