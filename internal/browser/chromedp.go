package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const defaultStepTimeout = 30 * time.Second

// ChromeDriver launches one Chrome process per session so that proxy and
// user-agent settings never leak between accounts.
type ChromeDriver struct {
	execPath string
	headless bool
}

func NewChromeDriver(execPath string, headless bool) *ChromeDriver {
	return &ChromeDriver{execPath: execPath, headless: headless}
}

type chromeSession struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewSession starts the browser. The returned session lives on an internal
// context, not the caller's: pending-login pages must survive the request
// that opened them. Close releases the whole process.
func (d *ChromeDriver) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.headless),
		chromedp.Flag("incognito", true),
		chromedp.NoSandbox,
	)
	if d.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(d.execPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	var auth *ProxyAuth
	if opts.Proxy != "" {
		server, proxyAuth, err := ParseProxy(opts.Proxy)
		if err != nil {
			return nil, err
		}
		allocOpts = append(allocOpts, chromedp.ProxyServer(server))
		auth = proxyAuth
		slog.Info("using proxy", "server", server)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &chromeSession{ctx: tabCtx, cancelAlloc: cancelAlloc, cancelTab: cancelTab}

	if auth != nil {
		if err := s.enableProxyAuth(*auth); err != nil {
			s.Close()
			return nil, fmt.Errorf("proxy authentication: %w", err)
		}
	}

	// Start the browser process up front so launch failures surface here,
	// not in the middle of the login flow.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return s, nil
}

// enableProxyAuth answers HTTP 407 challenges from the upstream proxy via
// the fetch domain.
func (s *chromeSession) enableProxyAuth(auth ProxyAuth) error {
	chromedp.ListenTarget(s.ctx, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				execCtx := cdp.WithExecutor(s.ctx, chromedp.FromContext(s.ctx).Target)
				resp := &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: auth.Username,
					Password: auth.Password,
				}
				if err := fetch.ContinueWithAuth(ev.RequestID, resp).Do(execCtx); err != nil {
					slog.Info(err.Error())
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				execCtx := cdp.WithExecutor(s.ctx, chromedp.FromContext(s.ctx).Target)
				if err := fetch.ContinueRequest(ev.RequestID).Do(execCtx); err != nil {
					slog.Info(err.Error())
				}
			}()
		}
	})

	return chromedp.Run(s.ctx, fetch.Enable().WithHandleAuthRequests(true))
}

func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, 60*time.Second, chromedp.Navigate(url))
}

func (s *chromeSession) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	return s.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (s *chromeSession) Type(ctx context.Context, sel, text string) error {
	return s.run(ctx, defaultStepTimeout,
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
}

func (s *chromeSession) PressEnter(ctx context.Context) error {
	return s.run(ctx, defaultStepTimeout, chromedp.KeyEvent(kb.Enter))
}

func (s *chromeSession) Click(ctx context.Context, sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	return s.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
}

func (s *chromeSession) ClickIfPresent(ctx context.Context, sel string) (bool, error) {
	var clicked bool
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, sel)
	if err := s.run(ctx, defaultStepTimeout, chromedp.Evaluate(js, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

func (s *chromeSession) Evaluate(ctx context.Context, js string, out any) error {
	return s.run(ctx, defaultStepTimeout, chromedp.Evaluate(js, out))
}

func (s *chromeSession) SetUploadFile(ctx context.Context, sel, path string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	return s.run(ctx, timeout, chromedp.SetUploadFiles(sel, []string{path}, chromedp.ByQuery))
}

func (s *chromeSession) WaitEnabled(ctx context.Context, sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return !!el && !el.disabled && !el.classList.contains("is-disabled");
	})()`, sel)
	var enabled bool
	return s.run(ctx, timeout, chromedp.Poll(js, &enabled, chromedp.WithPollingTimeout(timeout)))
}

func (s *chromeSession) URL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, defaultStepTimeout, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (s *chromeSession) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := s.run(ctx, defaultStepTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			cookies = append(cookies, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

func (s *chromeSession) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return s.run(ctx, defaultStepTimeout, storage.SetCookies(params))
}

func (s *chromeSession) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}
