package smplr

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/germanamz/spaceview/pkg/viewer"
)

// loader resolves a target to a factory once Chrome is running.
type loader struct {
	browser *Browser
	page    Page
}

func (l *loader) Load(_ context.Context, target viewer.Target) (viewer.Factory, error) {
	url, err := SDKURL(l.browser.sdkBaseURL, target)
	if err != nil {
		return nil, err
	}

	html, err := l.page.HTML()
	if err != nil {
		return nil, err
	}

	browserCtx, err := l.browser.ensureBrowser()
	if err != nil {
		return nil, err
	}

	return &factory{
		browser:    l.browser,
		browserCtx: browserCtx,
		page:       l.page,
		html:       html,
		sdkURL:     url,
		format:     target.Format,
	}, nil
}

// factory opens one tab per engine and loads the SDK into it.
type factory struct {
	browser    *Browser
	browserCtx context.Context
	page       Page
	html       string
	sdkURL     string
	format     string
}

func (f *factory) NewEngine(ctx context.Context, opts viewer.EngineOptions) (viewer.Engine, error) {
	construct, err := constructScript(opts)
	if err != nil {
		return nil, fmt.Errorf("smplr: encode space options: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(f.browserCtx)

	// Open the tab outside any deadline so the deadline cannot close it.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("smplr: open tab: %w", err)
	}

	opCtx, cancel := opContext(ctx, tabCtx, f.browser.opTimeout)
	defer cancel()

	w, h := f.page.viewport()
	var sdkLoaded, mounted bool
	err = chromedp.Run(opCtx,
		chromedp.EmulateViewport(w, h),
		chromedp.Navigate("about:blank"),
		setDocument(f.html),
		chromedp.Evaluate(loadScript(f.sdkURL, f.format), &sdkLoaded, awaitPromise),
		chromedp.Evaluate(mountScript(opts.MountID), &mounted),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("smplr: load sdk from %s: %w", f.sdkURL, err)
	}
	if !sdkLoaded {
		tabCancel()
		return nil, fmt.Errorf("smplr: sdk at %s did not define smplr", f.sdkURL)
	}
	if !mounted {
		tabCancel()
		return nil, fmt.Errorf("smplr: mount region %q not found", opts.MountID)
	}

	if err := chromedp.Run(opCtx, chromedp.Evaluate(construct, nil)); err != nil {
		tabCancel()
		return nil, fmt.Errorf("smplr: construct space: %w", err)
	}

	return newSpace(f.browser, tabCtx, tabCancel), nil
}
