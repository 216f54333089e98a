package simhost

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/liuxd6825/marionette/api"
)

var (
	background = color.RGBA{R: 255, G: 255, B: 255, A: 255} //nolint:gochecknoglobals
	highlight  = color.RGBA{R: 255, G: 0, B: 0, A: 255}     //nolint:gochecknoglobals
)

// takeScreenshot answers with a base64 PNG of the viewport, or of the
// element in parameter id. Nothing is rendered: the image is blank apart
// from the outlines of the highlighted elements.
func takeScreenshot(a *agent, _ string, p api.Params) (interface{}, error) {
	size := a.tab.win.Size()
	bounds := api.Rect{Width: float64(size.Width), Height: float64(size.Height)}
	if p["id"] != nil {
		el, err := a.element(p["id"])
		if err != nil {
			return nil, err
		}
		bounds = el.Rect()
	}

	var marks []api.Rect
	for _, h := range p.Slice("highlights") {
		el, err := a.element(h)
		if err != nil {
			return nil, err
		}
		marks = append(marks, el.Rect())
	}

	w, h := int(bounds.Width), int(bounds.Height)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
	for _, r := range marks {
		outline(img, image.Rect(
			int(r.X-bounds.X), int(r.Y-bounds.Y),
			int(r.X-bounds.X+r.Width), int(r.Y-bounds.Y+r.Height),
		))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, api.NewError(api.UnknownError, "encoding screenshot: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func outline(img *image.RGBA, r image.Rectangle) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, highlight)
		img.Set(x, r.Max.Y-1, highlight)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, highlight)
		img.Set(r.Max.X-1, y, highlight)
	}
}
