package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// Automation owns the browser process and the single storefront tab.
type Automation struct {
	config   *Config
	logger   *zap.Logger
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
}

func NewAutomation(config *Config, logger *zap.Logger) *Automation {
	return &Automation{
		config: config,
		logger: logger,
	}
}

func (a *Automation) Close() {
	fmt.Println(T("cleaning_up"))

	if a.page != nil {
		a.page.Close()
	}

	if a.browser != nil {
		a.browser.Close()
	}

	if a.launcher != nil {
		a.launcher.Cleanup()
	}

	fmt.Println(T("browser_destroyed"))
}

func (a *Automation) setupBrowser() error {
	fmt.Println(T("browser_launching"))

	// Leakless deadlocks on Windows: https://github.com/go-rod/rod/issues/853
	useLeakless := runtime.GOOS != "windows"

	chromePath, chromeExists := launcher.LookPath()

	a.launcher = launcher.New().
		Leakless(useLeakless).
		Headless(a.config.Headless)

	// Must be set before Bin() to take effect.
	if a.config.BrowserProfilePath != "" {
		a.launcher = a.launcher.UserDataDir(a.config.BrowserProfilePath)
		a.logger.Debug("Browser profile path set", zap.String("path", a.config.BrowserProfilePath))
	}

	if chromeExists {
		a.launcher = a.launcher.Bin(chromePath)
		fmt.Println(T("browser_using_system_chrome"))
		a.logger.Debug("Chrome binary", zap.String("path", chromePath))
	} else {
		fmt.Println(T("browser_chrome_not_found"))
	}

	url, err := a.launcher.Launch()
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "ProcessSingleton") || strings.Contains(errMsg, "SingletonLock") {
			return fmt.Errorf("browser profile %s is in use by another Chrome; close it and retry: %w", a.config.BrowserProfilePath, err)
		}
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	a.browser = rod.New().ControlURL(url)
	if err := a.browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	a.page, err = stealth.Page(a.browser)
	if err != nil {
		return fmt.Errorf("failed to create stealth page: %w", err)
	}

	fmt.Println(T("browser_launched"))
	return nil
}

// waitForLogin opens the product page and blocks until the user confirms
// the storefront session is signed in.
func (a *Automation) waitForLogin(ctx context.Context, in io.Reader) error {
	if err := a.Page().Navigate(ctx, a.config.ProductURL); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(T("login_required_header"))
	fmt.Print(T("login_prompt"))

	reader := bufio.NewReader(in)
	for {
		input, err := reader.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if input == '\n' || input == '\r' {
			fmt.Println()
			fmt.Println(T("user_confirmed_ready"))
			return nil
		}

		if input == 27 {
			fmt.Println()
			fmt.Println(T("user_requested_exit"))
			return fmt.Errorf("user canceled operation")
		}
	}
}

// Page exposes the tab through the Page port.
func (a *Automation) Page() *RodPage {
	return &RodPage{page: a.page}
}

// RodPage implements Page with small JS snippets evaluated in the tab.
type RodPage struct {
	page *rod.Page
}

const (
	jsExists = `(id) => document.getElementById(id) !== null`

	jsSetValue = `(id, value) => {
		const el = document.getElementById(id);
		if (!el) return false;
		el.value = value;
		return true;
	}`

	jsClick = `(id) => {
		const el = document.getElementById(id);
		if (!el) return false;
		el.click();
		return true;
	}`

	jsDispatch = `(id, names) => {
		const el = document.getElementById(id);
		if (!el) return false;
		for (const name of names) {
			const evt = name === 'click'
				? new MouseEvent('click', { view: window, bubbles: true, clientX: 20 })
				: new FocusEvent(name, { bubbles: true });
			el.dispatchEvent(evt);
		}
		return true;
	}`

	jsClickClass = `(cls, index) => {
		const el = document.getElementsByClassName(cls)[index];
		if (!el) return false;
		el.click();
		return true;
	}`

	jsClickClassChild = `(cls) => {
		const el = document.getElementsByClassName(cls)[0];
		if (!el || !el.children[0]) return false;
		el.children[0].click();
		return true;
	}`
)

func (p *RodPage) evalFound(ctx context.Context, what, js string, args ...interface{}) error {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%s: %w", what, ErrElementNotFound)
	}
	return nil
}

func (p *RodPage) Exists(ctx context.Context, id string) (bool, error) {
	res, err := p.page.Context(ctx).Eval(jsExists, id)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (p *RodPage) SetValue(ctx context.Context, id, value string) error {
	return p.evalFound(ctx, "#"+id, jsSetValue, id, value)
}

func (p *RodPage) Click(ctx context.Context, id string) error {
	return p.evalFound(ctx, "#"+id, jsClick, id)
}

func (p *RodPage) DispatchEvents(ctx context.Context, id string, events ...string) error {
	return p.evalFound(ctx, "#"+id, jsDispatch, id, events)
}

func (p *RodPage) ClickClass(ctx context.Context, class string, index int) error {
	return p.evalFound(ctx, fmt.Sprintf(".%s[%d]", class, index), jsClickClass, class, index)
}

func (p *RodPage) ClickClassChild(ctx context.Context, class string) error {
	return p.evalFound(ctx, "."+class, jsClickClassChild, class)
}

func (p *RodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("page failed to load: %w", err)
	}
	return nil
}
