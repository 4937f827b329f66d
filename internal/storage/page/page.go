package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
	"github.com/watchzerg/magnet-picker-sub000/internal/common"
	"github.com/watchzerg/magnet-picker-sub000/internal/config"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

type PageAdapter interface {
	ToPage(source []byte, sourcePath string) (*entity.Page, error)
}

type pageStorage struct {
	running atomic.Bool
	fs      afero.Fs
	adapter PageAdapter
	cfg     *config.ScannerConfig
	log     *slog.Logger
}

func NewPageStorage(adapter PageAdapter, cfg *config.ScannerConfig, log *slog.Logger) *pageStorage {
	return NewPageStorageWithFS(afero.NewOsFs(), adapter, cfg, log)
}

func NewPageStorageWithFS(fs afero.Fs, adapter PageAdapter, cfg *config.ScannerConfig, log *slog.Logger) *pageStorage {
	return &pageStorage{
		fs:      fs,
		adapter: adapter,
		cfg:     cfg,
		log:     log.With(slog.String("item", "PageStorage")),
	}
}

// Scan parses every page file of the work dir and returns the candidates found, first
// occurrence wins when the same magnet shows up on several pages.
func (p *pageStorage) Scan(ctx context.Context) ([]*entity.Candidate, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, common.ErrScanHasAlreadyStarted
	}
	defer p.running.Store(false)

	entries, err := afero.ReadDir(p.fs, p.cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("cannot read work dir %s: %w", p.cfg.WorkDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), p.cfg.PageExt) {
			continue
		}

		files = append(files, filepath.Join(p.cfg.WorkDir, entry.Name()))

		if len(files) >= p.cfg.MaxPages {
			break
		}
	}

	if len(files) == 0 {
		return []*entity.Candidate{}, nil
	}

	in := make(chan string, len(files))
	out := make(chan *entity.Page, len(files))

	for _, file := range files {
		in <- file
	}
	close(in)

	workers := max(p.cfg.Workers, 1)

	var wg sync.WaitGroup
	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go p.worker(ctx, n, in, out, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var pages []*entity.Page
	for page := range out {
		p.log.Info("Found page", slog.String("id", page.ID), slog.String("path", page.SourcePath), slog.Int("candidates", len(page.Candidates)))
		pages = append(pages, page)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	// Workers finish in any order.
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].SourcePath < pages[j].SourcePath
	})

	seen := make(map[string]struct{})
	var candidates []*entity.Candidate
	for _, page := range pages {
		for _, c := range page.Candidates {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			candidates = append(candidates, c)
		}
	}

	return candidates, nil
}

func (p *pageStorage) worker(ctx context.Context, n int, in chan string, out chan *entity.Page, wg *sync.WaitGroup) {
	defer wg.Done()

	log := p.log.With(slog.Int("worker_id", n))
	log.Debug("Started")

	for path := range in {
		data, err := afero.ReadFile(p.fs, path)
		if err != nil {
			log.Error("Cannot read page", slog.String("path", path), slog.Any("error", err))

			continue
		}

		page, err := p.adapter.ToPage(data, path)
		if err != nil {
			if errors.Is(err, common.ErrPageHasNoCandidatesError) {
				log.Warn("Page has no magnet links", slog.String("path", path))
			} else {
				log.Error("Cannot parse page", slog.String("path", path), slog.Any("error", err))
			}

			continue
		}

		select {
		case <-ctx.Done():
			log.Info("Interrupted")

			return
		case out <- page:
		}
	}

	log.Debug("Done")
}
