package smplr

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/germanamz/spaceview/pkg/viewer"
)

// Page describes the document written into each viewer tab.
type Page struct {
	Title    string
	MountIDs []string // ids of the regions engines may attach to
	Width    int64    // viewport width in CSS pixels; 0 means 1280
	Height   int64    // viewport height in CSS pixels; 0 means 800
}

// DefaultPage has a single full-window mount region.
func DefaultPage() Page {
	return Page{Title: "Space viewer", MountIDs: []string{viewer.DefaultMountID}}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>html,body{margin:0;height:100%;background:#0f1115}.viewer{width:100%;height:100%}</style>
</head>
<body>
{{- range .MountIDs}}
<div id="{{.}}" class="viewer"></div>
{{- end}}
</body>
</html>
`))

// HTML renders the page document.
func (p Page) HTML() (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("smplr: render page: %w", err)
	}
	return buf.String(), nil
}

func (p Page) viewport() (int64, int64) {
	w, h := p.Width, p.Height
	if w <= 0 {
		w = 1280
	}
	if h <= 0 {
		h = 800
	}
	return w, h
}

// setDocument replaces the current frame's document with html.
func setDocument(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("get frame tree: %w", err)
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}
