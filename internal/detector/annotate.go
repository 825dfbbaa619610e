package detector

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

const boxThickness = 3

var palette = []color.NRGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 44, G: 153, B: 168, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
}

// Annotate draws a labelled rectangle per detection onto the image at src
// and saves the result to dst. The output format follows dst's extension.
func Annotate(src, dst string, dets []detection.Detection) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return err
	}

	canvas := imaging.Clone(img)
	classColors := make(map[string]color.NRGBA)
	for _, d := range dets {
		c, ok := classColors[d.Class]
		if !ok {
			c = palette[len(classColors)%len(palette)]
			classColors[d.Class] = c
		}
		drawBox(canvas, boxRect(canvas.Bounds(), d), c)
		drawCaption(canvas, boxRect(canvas.Bounds(), d), d.Class)
	}

	return imaging.Save(canvas, dst)
}

// boxRect converts a normalized center box into pixel coordinates clipped to bounds
func boxRect(bounds image.Rectangle, d detection.Detection) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x0 := int(math.Round((d.CX - d.Width/2) * w))
	y0 := int(math.Round((d.CY - d.Height/2) * h))
	x1 := int(math.Round((d.CX + d.Width/2) * w))
	y1 := int(math.Round((d.CY + d.Height/2) * h))
	return image.Rect(x0, y0, x1, y1).Add(bounds.Min).Intersect(bounds)
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	if r.Empty() {
		return
	}
	for t := 0; t < boxThickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, r.Min.Y+t, c)
			img.SetNRGBA(x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.SetNRGBA(r.Min.X+t, y, c)
			img.SetNRGBA(r.Max.X-1-t, y, c)
		}
	}
}

func drawCaption(img *image.NRGBA, r image.Rectangle, label string) {
	if r.Empty() {
		return
	}
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(r.Min.X+boxThickness+1, r.Min.Y+boxThickness+face.Ascent),
	}
	d.DrawString(label)
}
