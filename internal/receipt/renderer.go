// Package receipt renders settled transactions as PNG receipts.
package receipt

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // logo formats
	"image/png"
	"os"

	"brewpos/internal/domain"
	"brewpos/internal/money"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Layout constants, in pixels.
const (
	Width          = 400
	Margin         = 20
	LineHeight     = 20
	SectionSpacing = 10
	LogoWidth      = 70
	LogoHeight     = 50

	headerBase      = 90
	orderInfoHeight = 40
	summaryHeight   = 150
	footerLines     = 4
	sectionCount    = 6
)

// Header is the store block printed under the logo.
type Header struct {
	Name  string
	Lines []string
}

// DefaultHeader is the store block used when none is configured.
var DefaultHeader = Header{
	Name:  "BIGBREW",
	Lines: []string{"San Jose, Jaro, Iloilo City", "5000 Iloilo, Iloilo City", "0919 718 9473"},
}

// Layouts used when a receipt is stamped from the transaction time.
const (
	DateLayout = "02-01-2006"
	TimeLayout = "03:04 PM"
)

// Input is everything a receipt shows. Date and Time are preformatted by the caller.
type Input struct {
	Transaction domain.Transaction
	Items       []domain.LineItem
	Date        string
	Time        string
	Cashier     string
}

type Options struct {
	Header        Header
	Logo          image.Image
	AddOnFeeCents int64
}

// Renderer draws receipts. It is safe for concurrent use; font faces are created per render.
type Renderer struct {
	header   Header
	logo     *image.RGBA
	addOnFee int64
	regular  *opentype.Font
	bold     *opentype.Font
}

func NewRenderer(opts Options) (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	header := opts.Header
	if header.Name == "" {
		header = DefaultHeader
	}
	r := &Renderer{header: header, addOnFee: opts.AddOnFeeCents, regular: regular, bold: bold}
	if opts.Logo != nil {
		r.logo = image.NewRGBA(image.Rect(0, 0, LogoWidth, LogoHeight))
		draw.CatmullRom.Scale(r.logo, r.logo.Bounds(), opts.Logo, opts.Logo.Bounds(), draw.Over, nil)
	}
	return r, nil
}

// LoadLogo decodes a PNG or JPEG logo from path.
func LoadLogo(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode logo %s: %w", path, err)
	}
	return img, nil
}

// Height returns the canvas height for the given items under r's header.
func (r *Renderer) Height(items []domain.LineItem) int {
	addOns := 0
	for _, it := range items {
		addOns += len(it.AddOns)
	}
	return headerBase + len(r.header.Lines)*LineHeight + orderInfoHeight +
		len(items)*LineHeight + addOns*LineHeight +
		summaryHeight + footerLines*LineHeight + SectionSpacing*sectionCount
}

type faces struct {
	title, header, normal font.Face
	currency              string
}

func (r *Renderer) newFaces() (*faces, error) {
	mk := func(f *opentype.Font, size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	}
	title, err := mk(r.bold, 20)
	if err != nil {
		return nil, err
	}
	header, err := mk(r.bold, 16)
	if err != nil {
		return nil, err
	}
	normal, err := mk(r.regular, 12)
	if err != nil {
		return nil, err
	}
	currency := "PHP "
	if _, ok := normal.GlyphAdvance('₱'); ok {
		currency = "₱"
	}
	return &faces{title: title, header: header, normal: normal, currency: currency}, nil
}

func (f *faces) Close() {
	f.title.Close()
	f.header.Close()
	f.normal.Close()
}

// Render draws the receipt and encodes it as PNG. Equal inputs give equal bytes.
func (r *Renderer) Render(in Input) ([]byte, error) {
	ff, err := r.newFaces()
	if err != nil {
		return nil, fmt.Errorf("load faces: %w", err)
	}
	defer ff.Close()

	img := image.NewRGBA(image.Rect(0, 0, Width, r.Height(in.Items)))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	c := &canvas{img: img, faces: ff}

	y := 10
	if r.logo != nil {
		x := (Width - LogoWidth) / 2
		draw.Draw(img, image.Rect(x, y, x+LogoWidth, y+LogoHeight), r.logo, image.Point{}, draw.Over)
	}
	y += LogoHeight + 10

	c.center(ff.title, y, r.header.Name)
	y += 30
	for i, line := range r.header.Lines {
		c.center(ff.normal, y, line)
		if i == len(r.header.Lines)-1 {
			y += 30
		} else {
			y += 20
		}
	}
	c.rule(y)
	y += SectionSpacing

	t := in.Transaction
	c.left(ff.normal, Margin, y, in.Date)
	c.left(ff.normal, Margin, y+16, "Time: "+in.Time)
	c.right(ff.normal, y, fmt.Sprintf("Order Number: %d", t.Number))
	c.right(ff.normal, y+16, "Order Code: "+t.Code)
	y += orderInfoHeight
	c.rule(y)
	y += SectionSpacing

	c.left(ff.header, Margin, y, "Name")
	c.right(ff.header, y, "Price")
	y += LineHeight

	var subtotal int64
	for _, it := range in.Items {
		c.left(ff.normal, Margin, y, fmt.Sprintf("%s (%s) x%d", it.ProductName, it.Size, it.Quantity))
		c.right(ff.normal, y, ff.currency+money.Format(it.TotalCents))
		subtotal += it.TotalCents
		y += LineHeight
		for _, addOn := range it.AddOns {
			c.left(ff.normal, Margin+10, y, "+ "+addOn)
			c.right(ff.normal, y, ff.currency+money.Format(r.addOnFee))
			y += LineHeight
		}
	}
	c.rule(y)
	y += SectionSpacing

	for _, row := range []struct {
		label string
		cents int64
		face  font.Face
	}{
		{"Subtotal:", subtotal, ff.normal},
		{"Payment Amount:", t.AmountTenderedCents, ff.normal},
		{"Change:", t.ChangeCents, ff.normal},
		{"Total:", t.TotalCents, ff.header},
	} {
		c.left(row.face, Margin, y, row.label)
		c.right(row.face, y, ff.currency+money.Format(row.cents))
		y += LineHeight
	}
	c.rule(y)
	y += SectionSpacing

	c.left(ff.header, Margin, y, "Payment Method:")
	c.right(ff.normal, y, methodLabel(t.PaymentMethod))
	y += LineHeight
	c.rule(y)
	y += SectionSpacing

	cashier := in.Cashier
	if cashier == "" {
		cashier = "Cashier"
	}
	c.center(ff.header, y, "Thank You!")
	y += LineHeight
	c.center(ff.normal, y, cashier)
	y += LineHeight
	c.center(ff.normal, y, "Cashier")
	y += LineHeight
	c.center(ff.normal, y, "Please come again!")

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func methodLabel(m domain.PaymentMethod) string {
	switch m {
	case domain.PaymentDigitalWallet:
		return "Digital Wallet"
	case "":
		return string(domain.PaymentCash)
	default:
		return string(m)
	}
}

type canvas struct {
	img   *image.RGBA
	faces *faces
}

var ink = image.NewUniform(color.Black)

// left draws s with its top-left corner at (x, top).
func (c *canvas) left(face font.Face, x, top int, s string) {
	c.draw(face, x, top+face.Metrics().Ascent.Ceil(), s)
}

// right draws s right-aligned to the margin with its top at top.
func (c *canvas) right(face font.Face, top int, s string) {
	w := font.MeasureString(face, s).Ceil()
	c.draw(face, Width-Margin-w, top+face.Metrics().Ascent.Ceil(), s)
}

// center draws s centered horizontally and vertically on mid.
func (c *canvas) center(face font.Face, mid int, s string) {
	w := font.MeasureString(face, s).Ceil()
	m := face.Metrics()
	baseline := mid + (m.Ascent.Ceil()-m.Descent.Ceil())/2
	c.draw(face, (Width-w)/2, baseline, s)
}

func (c *canvas) draw(face font.Face, x, baseline int, s string) {
	d := &font.Drawer{Dst: c.img, Src: ink, Face: face, Dot: fixed.P(x, baseline)}
	d.DrawString(s)
}

func (c *canvas) rule(y int) {
	draw.Draw(c.img, image.Rect(Margin, y, Width-Margin, y+1), ink, image.Point{}, draw.Src)
}
