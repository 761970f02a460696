// Package trailer drives headless Chrome against storefront pages to capture
// the MPEG-DASH manifest URL behind each game's trailer player.
package trailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zolointo/next-fext-randomizer/internal/steam"
)

// ErrInterceptorDisabled indicates browser capture has been disabled via
// configuration; the pipeline then renders rows without trailers.
var ErrInterceptorDisabled = errors.New("trailer interceptor disabled")

// Cookies preseeded on the storefront domain to skip the age gate and
// mature-content interstitials.
var ageGateCookies = []struct {
	name, value string
}{
	{"birthtime", "0"},
	{"mature_content", "1"},
	{"lastagecheckage", "1-0-1990"},
}

// Selectors probed, in order, to dismiss cookie and age-gate banners.
var dismissSelectors = []string{
	"#cookieAgreementPopup .btn_medium",
	".agegate_text_container .btn_medium",
	"#age_gate_btn_continue",
}

// Selectors probed, in order, to start the trailer player.
var playSelectors = []string{
	"[data-trailer-player] .vXKdKnTS2vXaw2YxC0Yc1",
	"[data-trailer-player]",
}

// Config controls the browser capture subsystem.
type Config struct {
	MaxParallel  int
	UserAgent    string
	NavTimeout   time.Duration
	ManifestWait time.Duration
	HostQPS      float64
}

// Interceptor owns one headless browser process and opens one tab per appid.
type Interceptor struct {
	cfg           Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	sem           chan struct{}
	hostLimiters  sync.Map
	logger        *zap.Logger
}

// New launches the browser and warms it up. Returns ErrInterceptorDisabled
// when MaxParallel is not positive.
func New(cfg Config, logger *zap.Logger) (*Interceptor, error) {
	if cfg.MaxParallel <= 0 {
		return nil, ErrInterceptorDisabled
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.ManifestWait <= 0 {
		cfg.ManifestWait = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Interceptor{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		sem:           make(chan struct{}, cfg.MaxParallel),
		logger:        logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (i *Interceptor) Close(ctx context.Context) error {
	if i == nil {
		return nil
	}
	i.browserCancel()
	i.allocCancel()
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

// ManifestURL opens the store page for appID, clicks through the gates and
// the play control, and returns the first intercepted .mpd request URL. A
// page that simply has no trailer yields ("", nil); navigation failures are
// returned as errors.
func (i *Interceptor) ManifestURL(ctx context.Context, appID int) (string, error) {
	if i == nil {
		return "", ErrInterceptorDisabled
	}

	release, err := i.acquireSlot(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err := i.waitHostBudget(ctx, "store.steampowered.com"); err != nil {
		return "", fmt.Errorf("store page rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(i.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, i.cfg.NavTimeout+i.cfg.ManifestWait)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	watch := newManifestWatch()
	chromedp.ListenTarget(taskCtx, watch.captureEvent)

	storeURL := steam.StoreURL(appID)
	i.logger.Debug("navigating to store page", zap.Int("appid", appID), zap.String("url", storeURL))

	if err := chromedp.Run(taskCtx,
		network.Enable(),
		i.seedCookiesAction(),
		i.userAgentAction(),
		chromedp.Navigate(storeURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("navigate appid %d: %w", appID, err)
	}

	i.clickFirst(taskCtx, dismissSelectors, 2*time.Second)

	if sel := i.clickFirst(taskCtx, playSelectors, 8*time.Second); sel == "" {
		i.logger.Warn("no play control found on store page", zap.Int("appid", appID))
	} else {
		i.logger.Debug("clicked play control", zap.Int("appid", appID), zap.String("selector", sel))
	}

	manifest := watch.await(taskCtx, i.cfg.ManifestWait)
	if manifest == "" {
		i.logger.Warn("no manifest request intercepted",
			zap.Int("appid", appID),
			zap.Duration("waited", i.cfg.ManifestWait),
		)
		return "", nil
	}
	i.logger.Info("intercepted trailer manifest", zap.Int("appid", appID), zap.String("manifest_url", manifest))
	return manifest, nil
}

func (i *Interceptor) seedCookiesAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range ageGateCookies {
			err := network.SetCookie(c.name, c.value).
				WithDomain(".steampowered.com").
				WithPath("/").
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.name, err)
			}
		}
		return nil
	})
}

func (i *Interceptor) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if i.cfg.UserAgent == "" {
			return nil
		}
		return emulation.SetUserAgentOverride(i.cfg.UserAgent).Do(ctx)
	})
}

// clickFirst probes each selector with its own short deadline and returns
// the first one that was clicked, or "" when none matched. Selector misses
// are expected (banners only appear for some regions and games).
func (i *Interceptor) clickFirst(ctx context.Context, selectors []string, perSelector time.Duration) string {
	for _, sel := range selectors {
		clickCtx, cancel := context.WithTimeout(ctx, perSelector)
		err := chromedp.Run(clickCtx,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
		)
		cancel()
		if err == nil {
			return sel
		}
		if ctx.Err() != nil {
			return ""
		}
	}
	return ""
}

func (i *Interceptor) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case i.sem <- struct{}{}:
		return func() { <-i.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire browser slot: %w", ctx.Err())
	}
}

func (i *Interceptor) waitHostBudget(ctx context.Context, host string) error {
	if i.cfg.HostQPS <= 0 {
		return nil
	}
	val, _ := i.hostLimiters.LoadOrStore(strings.ToLower(host), rate.NewLimiter(rate.Limit(i.cfg.HostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

// manifestWatch records the first network request whose URL looks like a
// DASH manifest.
type manifestWatch struct {
	once sync.Once
	url  string
	done chan struct{}
}

func newManifestWatch() *manifestWatch {
	return &manifestWatch{done: make(chan struct{})}
}

func (w *manifestWatch) captureEvent(ev interface{}) {
	req, ok := ev.(*network.EventRequestWillBeSent)
	if !ok || req.Request == nil {
		return
	}
	if !isManifestURL(req.Request.URL) {
		return
	}
	w.once.Do(func() {
		w.url = req.Request.URL
		close(w.done)
	})
}

// await blocks until a manifest was captured, the wait window elapses, or
// the tab context finishes.
func (w *manifestWatch) await(ctx context.Context, wait time.Duration) string {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-w.done:
		return w.url
	case <-timer.C:
		return ""
	case <-ctx.Done():
		// A late capture may have raced the context; prefer it.
		select {
		case <-w.done:
			return w.url
		default:
			return ""
		}
	}
}

func isManifestURL(url string) bool {
	return strings.Contains(url, ".mpd")
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
