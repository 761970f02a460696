// Package pipeline executes a generation run: metadata fetch, trailer
// capture, and chunked page output.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zolointo/next-fext-randomizer/internal/metrics"
	"github.com/zolointo/next-fext-randomizer/internal/progress"
	"github.com/zolointo/next-fext-randomizer/internal/render"
	"github.com/zolointo/next-fext-randomizer/internal/steam"
)

// MetadataSource fetches storefront metadata for one appid.
type MetadataSource interface {
	AppDetails(ctx context.Context, appID int) (steam.AppDetails, error)
}

// ManifestSource captures the trailer stream manifest for one appid.
type ManifestSource interface {
	ManifestURL(ctx context.Context, appID int) (string, error)
}

// PageRenderer turns a chunk of games into an HTML document.
type PageRenderer interface {
	Render(w io.Writer, title string, games []render.Game) error
}

// PageSink persists one rendered chunk.
type PageSink interface {
	WritePage(ctx context.Context, index int, body []byte) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Config controls run execution.
type Config struct {
	// Concurrency caps apps processed in parallel.
	Concurrency int
	// ChunkSize is the number of games per output page.
	ChunkSize int
	// MaxJitter is the random delay applied before each app to spread
	// browser load; zero disables it.
	MaxJitter time.Duration
}

// Counters reports what a run accomplished.
type Counters struct {
	AppsProcessed    int
	TrailersFound    int
	MetadataFailures int
	PagesWritten     int
}

// Pipeline wires the collaborators for a generation run.
type Pipeline struct {
	cfg       Config
	meta      MetadataSource
	manifests ManifestSource
	renderer  PageRenderer
	sink      PageSink
	ids       IDGenerator
	clock     Clock
	emitter   progress.Emitter
	logger    *zap.Logger
}

// New constructs a Pipeline. manifests may be nil when browser capture is
// disabled; rows are then rendered without trailers.
func New(
	cfg Config,
	meta MetadataSource,
	manifests ManifestSource,
	renderer PageRenderer,
	sink PageSink,
	ids IDGenerator,
	clock Clock,
	emitter progress.Emitter,
	logger *zap.Logger,
) (*Pipeline, error) {
	if meta == nil {
		return nil, errors.New("pipeline: metadata source is required")
	}
	if renderer == nil || sink == nil {
		return nil, errors.New("pipeline: renderer and sink are required")
	}
	if ids == nil {
		return nil, errors.New("pipeline: id generator is required")
	}
	if clock == nil {
		return nil, errors.New("pipeline: clock is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		meta:      meta,
		manifests: manifests,
		renderer:  renderer,
		sink:      sink,
		ids:       ids,
		clock:     clock,
		emitter:   emitter,
		logger:    logger,
	}, nil
}

// Run processes every appid, preserving input order within each output
// chunk, and writes one page per chunk. It returns the counters together
// with the first fatal error (rendering or writing output); per-app
// failures degrade the row instead of aborting the run.
func (p *Pipeline) Run(ctx context.Context, appIDs []int) (Counters, error) {
	var counters Counters
	if len(appIDs) == 0 {
		return counters, errors.New("no appids to process")
	}

	runID, err := p.ids.NewID()
	if err != nil {
		return counters, fmt.Errorf("new run id: %w", err)
	}
	runStart := p.clock.Now()
	logger := p.logger.With(zap.String("run_id", runID))

	chunks := chunkAppIDs(appIDs, p.cfg.ChunkSize)
	logger.Info("starting generation run",
		zap.Int("appids", len(appIDs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", p.cfg.ChunkSize),
		zap.Int("concurrency", p.cfg.Concurrency),
	)
	p.emit(progress.Event{RunID: runID, Stage: progress.StageRunStart})

	for idx, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return counters, err
		}
		pageIndex := idx + 1
		if err := p.runChunk(ctx, logger, runID, pageIndex, chunk, &counters); err != nil {
			return counters, err
		}
	}

	p.emit(progress.Event{RunID: runID, Stage: progress.StageRunDone, Dur: p.clock.Now().Sub(runStart)})
	logger.Info("generation run finished",
		zap.Int("apps_processed", counters.AppsProcessed),
		zap.Int("trailers_found", counters.TrailersFound),
		zap.Int("metadata_failures", counters.MetadataFailures),
		zap.Int("pages_written", counters.PagesWritten),
	)
	return counters, nil
}

func (p *Pipeline) runChunk(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	pageIndex int,
	chunk []int,
	counters *Counters,
) error {
	results := make([]appResult, len(chunk))
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, appID := range chunk {
		wg.Add(1)
		go func(i, appID int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = appResult{game: placeholderGame(appID), metaFailed: true}
				return
			}
			results[i] = p.processApp(ctx, logger, runID, appID)
		}(i, appID)
	}
	wg.Wait()

	games := make([]render.Game, len(results))
	for i, r := range results {
		games[i] = r.game
		counters.AppsProcessed++
		if r.game.HasTrailer() {
			counters.TrailersFound++
		}
		if r.metaFailed {
			counters.MetadataFailures++
		}
	}

	title := fmt.Sprintf("batch %d", pageIndex)
	var buf bytes.Buffer
	if err := p.renderer.Render(&buf, title, games); err != nil {
		return fmt.Errorf("render chunk %d: %w", pageIndex, err)
	}
	path, err := p.sink.WritePage(ctx, pageIndex, buf.Bytes())
	if err != nil {
		return fmt.Errorf("write chunk %d: %w", pageIndex, err)
	}
	counters.PagesWritten++

	p.emit(progress.Event{RunID: runID, Stage: progress.StagePageWritten, Path: path})
	logger.Info("chunk written",
		zap.Int("chunk", pageIndex),
		zap.Int("games", len(chunk)),
		zap.String("path", filepath.Clean(path)),
	)
	return nil
}

// appResult pairs one rendered row with its bookkeeping flags.
type appResult struct {
	game       render.Game
	metaFailed bool
}

// processApp never fails the run: metadata errors degrade to a placeholder
// name and capture errors degrade to a missing trailer.
func (p *Pipeline) processApp(ctx context.Context, logger *zap.Logger, runID string, appID int) appResult {
	start := p.clock.Now()
	p.emit(progress.Event{RunID: runID, Stage: progress.StageAppStart, AppID: appID})

	p.jitter(ctx)

	var metaFailed bool
	game := render.Game{
		AppID:    appID,
		StoreURL: steam.StoreURL(appID),
	}

	details, err := p.meta.AppDetails(ctx, appID)
	if err != nil {
		metrics.ObserveAPIRequest("error")
		logger.Warn("metadata fetch failed, using placeholder",
			zap.Int("appid", appID),
			zap.Error(err),
		)
		game.Name = placeholderName(appID)
		metaFailed = true
	} else {
		metrics.ObserveAPIRequest("ok")
		game.Name = details.Name
		game.HeaderImage = details.HeaderImage
		if game.Name == "" {
			game.Name = placeholderName(appID)
		}
	}

	if p.manifests != nil {
		manifest, err := p.manifests.ManifestURL(ctx, appID)
		switch {
		case err != nil:
			metrics.ObserveManifestCapture("error")
			logger.Warn("manifest capture failed", zap.Int("appid", appID), zap.Error(err))
		case manifest != "":
			metrics.ObserveManifestCapture("found")
			game.ManifestURL = manifest
		default:
			metrics.ObserveManifestCapture("missing")
		}
	}

	p.emit(progress.Event{
		RunID:        runID,
		Stage:        progress.StageAppDone,
		AppID:        appID,
		TrailerFound: game.HasTrailer(),
		Dur:          p.clock.Now().Sub(start),
	})
	return appResult{game: game, metaFailed: metaFailed}
}

func (p *Pipeline) jitter(ctx context.Context) {
	if p.cfg.MaxJitter <= 0 {
		return
	}
	delay := rand.N(p.cfg.MaxJitter)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *Pipeline) emit(evt progress.Event) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(evt)
}

func placeholderGame(appID int) render.Game {
	return render.Game{
		AppID:    appID,
		Name:     placeholderName(appID),
		StoreURL: steam.StoreURL(appID),
	}
}

func placeholderName(appID int) string {
	return fmt.Sprintf("App %d", appID)
}

func chunkAppIDs(appIDs []int, size int) [][]int {
	var chunks [][]int
	for start := 0; start < len(appIDs); start += size {
		end := start + size
		if end > len(appIDs) {
			end = len(appIDs)
		}
		chunks = append(chunks, appIDs[start:end])
	}
	return chunks
}
