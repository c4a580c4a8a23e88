package certificate

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	canvasWidth  = 1600
	canvasHeight = 1130
	glyphHeight  = 13
	glyphAscent  = 11
)

// Data is what gets printed on a certificate.
type Data struct {
	RecipientName   string
	AssessmentTitle string
	Score           int
	TotalQuestions  int
	Percentage      int
	CompletedAt     time.Time
	Serial          string
}

type Renderer interface {
	Render(w io.Writer, d Data) error
	ContentType() string
}

var (
	paper  = color.NRGBA{R: 250, G: 247, B: 238, A: 255}
	ink    = color.NRGBA{R: 33, G: 37, B: 41, A: 255}
	accent = color.NRGBA{R: 20, G: 83, B: 136, A: 255}
	muted  = color.NRGBA{R: 108, G: 117, B: 125, A: 255}
)

// ImageRenderer composes a PNG certificate on a template image, or on a plain bordered
// canvas when no template is configured.
type ImageRenderer struct {
	template image.Image
}

func NewImageRenderer(templatePath string) (*ImageRenderer, error) {
	if templatePath == "" {
		return &ImageRenderer{template: plainCanvas()}, nil
	}
	img, err := imaging.Open(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open certificate template: %w", err)
	}
	return &ImageRenderer{
		template: imaging.Fill(img, canvasWidth, canvasHeight, imaging.Center, imaging.Lanczos),
	}, nil
}

func plainCanvas() image.Image {
	canvas := imaging.New(canvasWidth, canvasHeight, accent)
	canvas = imaging.Overlay(canvas, imaging.New(canvasWidth-40, canvasHeight-40, paper), image.Pt(20, 20), 1)
	canvas = imaging.Overlay(canvas, imaging.New(canvasWidth-80, 4, accent), image.Pt(40, 40), 1)
	canvas = imaging.Overlay(canvas, imaging.New(canvasWidth-80, 4, accent), image.Pt(40, canvasHeight-44), 1)
	return canvas
}

func (r *ImageRenderer) ContentType() string {
	return "image/png"
}

func (r *ImageRenderer) Render(w io.Writer, d Data) error {
	if d.RecipientName == "" {
		return fmt.Errorf("recipient name is required")
	}

	canvas := imaging.Clone(r.template)
	lines := []struct {
		text  string
		scale int
		y     int
		col   color.Color
	}{
		{"CERTIFICATE OF ACHIEVEMENT", 6, 140, accent},
		{"This certifies that", 3, 330, muted},
		{d.RecipientName, 7, 400, ink},
		{"has successfully passed", 3, 540, muted},
		{d.AssessmentTitle, 5, 600, ink},
		{fmt.Sprintf("Score %d/%d (%d%%)", d.Score, d.TotalQuestions, d.Percentage), 4, 750, accent},
		{"Completed " + d.CompletedAt.UTC().Format("January 2, 2006"), 3, 860, muted},
		{"Serial " + d.Serial, 2, 1000, muted},
	}
	for _, l := range lines {
		if l.text == "" {
			continue
		}
		canvas = drawCentered(canvas, l.text, l.scale, l.y, l.col)
	}

	if err := imaging.Encode(w, canvas, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode certificate: %w", err)
	}
	return nil
}

// drawCentered rasterises text with the fixed 7x13 face, scales it up and centres it horizontally.
// Text wider than the canvas is shrunk to fit.
func drawCentered(canvas *image.NRGBA, text string, scale, y int, col color.Color) *image.NRGBA {
	d := &font.Drawer{Face: basicfont.Face7x13}
	width := d.MeasureString(text).Ceil()
	if width == 0 {
		return canvas
	}

	glyphs := image.NewRGBA(image.Rect(0, 0, width, glyphHeight))
	d.Dst = glyphs
	d.Src = image.NewUniform(col)
	d.Dot = fixed.P(0, glyphAscent)
	d.DrawString(text)

	maxWidth := canvas.Bounds().Dx() - 120
	for scale > 1 && width*scale > maxWidth {
		scale--
	}
	scaled := imaging.Resize(glyphs, width*scale, glyphHeight*scale, imaging.NearestNeighbor)

	x := (canvas.Bounds().Dx() - scaled.Bounds().Dx()) / 2
	return imaging.Overlay(canvas, scaled, image.Pt(x, y), 1)
}
