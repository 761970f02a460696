package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zolointo/next-fext-randomizer/internal/progress"
	"github.com/zolointo/next-fext-randomizer/internal/render"
	"github.com/zolointo/next-fext-randomizer/internal/steam"
)

type fakeMeta struct {
	mu    sync.Mutex
	calls []int
	fail  map[int]bool
}

func (f *fakeMeta) AppDetails(_ context.Context, appID int) (steam.AppDetails, error) {
	f.mu.Lock()
	f.calls = append(f.calls, appID)
	f.mu.Unlock()
	if f.fail[appID] {
		return steam.AppDetails{}, errors.New("boom")
	}
	return steam.AppDetails{
		AppID:       appID,
		Name:        fmt.Sprintf("Game %d", appID),
		HeaderImage: fmt.Sprintf("https://cdn.example/%d.jpg", appID),
	}, nil
}

type fakeManifests struct {
	found map[int]string
	err   map[int]bool
}

func (f *fakeManifests) ManifestURL(_ context.Context, appID int) (string, error) {
	if f.err[appID] {
		return "", errors.New("browser crashed")
	}
	return f.found[appID], nil
}

type recordingRenderer struct {
	mu     sync.Mutex
	chunks [][]render.Game
}

func (r *recordingRenderer) Render(w io.Writer, title string, games []render.Game) error {
	r.mu.Lock()
	r.chunks = append(r.chunks, append([]render.Game(nil), games...))
	r.mu.Unlock()
	_, err := fmt.Fprintf(w, "<html>%s: %d games</html>", title, len(games))
	return err
}

type recordingSink struct {
	mu    sync.Mutex
	pages map[int]string
	fail  bool
}

func (s *recordingSink) WritePage(_ context.Context, index int, body []byte) (string, error) {
	if s.fail {
		return "", errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages == nil {
		s.pages = make(map[int]string)
	}
	path := fmt.Sprintf("out/rando_bin_%d.html", index)
	s.pages[index] = string(body)
	return path, nil
}

type staticIDs struct{}

func (staticIDs) NewID() (string, error) { return "run-0001", nil }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type collectEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *collectEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
}

func (c *collectEmitter) byStage(stage progress.Stage) []progress.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []progress.Event
	for _, evt := range c.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

func newTestPipeline(t *testing.T, cfg Config, meta MetadataSource, manifests ManifestSource, sink PageSink, emitter progress.Emitter) *Pipeline {
	t.Helper()
	p, err := New(cfg, meta, manifests, &recordingRenderer{}, sink, staticIDs{}, systemClock{}, emitter, nil)
	require.NoError(t, err)
	return p
}

func TestRunPreservesInputOrderAndChunks(t *testing.T) {
	meta := &fakeMeta{}
	manifests := &fakeManifests{found: map[int]string{
		2: "https://cdn.example/2.mpd",
		5: "https://cdn.example/5.mpd",
	}}
	renderer := &recordingRenderer{}
	sink := &recordingSink{}

	p, err := New(
		Config{Concurrency: 3, ChunkSize: 2},
		meta, manifests, renderer, sink, staticIDs{}, systemClock{}, nil, nil,
	)
	require.NoError(t, err)

	counters, err := p.Run(context.Background(), []int{1, 2, 3, 4, 5})
	require.NoError(t, err)

	require.Equal(t, 5, counters.AppsProcessed)
	require.Equal(t, 2, counters.TrailersFound)
	require.Equal(t, 0, counters.MetadataFailures)
	require.Equal(t, 3, counters.PagesWritten)

	require.Len(t, renderer.chunks, 3)
	require.Equal(t, []int{1, 2}, appIDsOf(renderer.chunks[0]))
	require.Equal(t, []int{3, 4}, appIDsOf(renderer.chunks[1]))
	require.Equal(t, []int{5}, appIDsOf(renderer.chunks[2]))

	require.Equal(t, "https://cdn.example/2.mpd", renderer.chunks[0][1].ManifestURL)
	require.Empty(t, renderer.chunks[0][0].ManifestURL)
	require.Len(t, sink.pages, 3)
}

func TestMetadataFailureDegradesToPlaceholder(t *testing.T) {
	meta := &fakeMeta{fail: map[int]bool{7: true}}
	renderer := &recordingRenderer{}
	sink := &recordingSink{}

	p, err := New(Config{ChunkSize: 10}, meta, nil, renderer, sink, staticIDs{}, systemClock{}, nil, nil)
	require.NoError(t, err)

	counters, err := p.Run(context.Background(), []int{7, 8})
	require.NoError(t, err)
	require.Equal(t, 1, counters.MetadataFailures)
	require.Equal(t, 2, counters.AppsProcessed)

	require.Equal(t, "App 7", renderer.chunks[0][0].Name)
	require.Equal(t, "Game 8", renderer.chunks[0][1].Name)
	require.Equal(t, "https://store.steampowered.com/app/7/", renderer.chunks[0][0].StoreURL)
}

func TestManifestErrorDegradesToMissingTrailer(t *testing.T) {
	meta := &fakeMeta{}
	manifests := &fakeManifests{err: map[int]bool{3: true}}
	renderer := &recordingRenderer{}
	sink := &recordingSink{}

	p, err := New(Config{ChunkSize: 10}, meta, manifests, renderer, sink, staticIDs{}, systemClock{}, nil, nil)
	require.NoError(t, err)

	counters, err := p.Run(context.Background(), []int{3})
	require.NoError(t, err)
	require.Equal(t, 0, counters.TrailersFound)
	require.Equal(t, 1, counters.AppsProcessed)
	require.Empty(t, renderer.chunks[0][0].ManifestURL)
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	emitter := &collectEmitter{}
	meta := &fakeMeta{}
	sink := &recordingSink{}

	p := newTestPipeline(t, Config{ChunkSize: 2}, meta, nil, sink, emitter)
	_, err := p.Run(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)

	require.Len(t, emitter.byStage(progress.StageRunStart), 1)
	require.Len(t, emitter.byStage(progress.StageRunDone), 1)
	require.Len(t, emitter.byStage(progress.StageAppStart), 3)
	require.Len(t, emitter.byStage(progress.StageAppDone), 3)
	require.Len(t, emitter.byStage(progress.StagePageWritten), 2)
	require.Equal(t, "run-0001", emitter.byStage(progress.StageRunStart)[0].RunID)
}

func TestRunFailsWhenSinkFails(t *testing.T) {
	p := newTestPipeline(t, Config{}, &fakeMeta{}, nil, &recordingSink{fail: true}, nil)
	_, err := p.Run(context.Background(), []int{1})
	require.Error(t, err)
}

func TestRunRejectsEmptyInput(t *testing.T) {
	p := newTestPipeline(t, Config{}, &fakeMeta{}, nil, &recordingSink{}, nil)
	_, err := p.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestNewValidatesDependencies(t *testing.T) {
	_, err := New(Config{}, nil, nil, &recordingRenderer{}, &recordingSink{}, staticIDs{}, systemClock{}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{}, &fakeMeta{}, nil, nil, &recordingSink{}, staticIDs{}, systemClock{}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{}, &fakeMeta{}, nil, &recordingRenderer{}, &recordingSink{}, nil, systemClock{}, nil, nil)
	require.Error(t, err)
}

func TestChunkAppIDs(t *testing.T) {
	require.Len(t, chunkAppIDs(nil, 10), 0)
	require.Equal(t, [][]int{{1, 2, 3}}, chunkAppIDs([]int{1, 2, 3}, 100))
	require.Equal(t, [][]int{{1, 2}, {3}}, chunkAppIDs([]int{1, 2, 3}, 2))
}

func appIDsOf(games []render.Game) []int {
	out := make([]int, len(games))
	for i, g := range games {
		out[i] = g.AppID
	}
	return out
}
