package display

import (
	"fmt"
	"image"
	"image/draw"
	"log"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Panel is a monochrome display device.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

var (
	setBox   = image.Rect(2, 2, 63, 42)
	tipBox   = image.Rect(65, 2, 126, 42)
	barBox   = image.Rect(2, 44, 126, 62)
	splashBx = image.Rect(2, 2, 126, 31)
	msgBox   = image.Rect(5, 21, 123, 44)
)

// Screen renders the station screens into a frame buffer and flushes it to a
// panel. Tip temperature and power are only redrawn once per refresh
// interval or when the tip temperature moves by more than one degree.
type Screen struct {
	panel   Panel
	refresh time.Duration
	now     func() time.Time

	mu         sync.Mutex
	img        *image1bit.VerticalLSB
	message    bool
	nextDraw   time.Time
	shownTip   int
	shownPower float64
	failed     bool
}

// NewScreen creates a screen on panel.
func NewScreen(p Panel, refresh time.Duration, now func() time.Time) *Screen {
	return &Screen{
		panel:   p,
		refresh: refresh,
		now:     now,
		img:     image1bit.NewVerticalLSB(p.Bounds()),
	}
}

func (s *Screen) clear() {
	draw.Draw(s.img, s.img.Bounds(), &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)
}

func (s *Screen) fill(r image.Rectangle, c image1bit.Bit) {
	draw.Draw(s.img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func (s *Screen) outline(r image.Rectangle) {
	for x := r.Min.X; x < r.Max.X; x++ {
		s.img.SetBit(x, r.Min.Y, image1bit.On)
		s.img.SetBit(x, r.Max.Y-1, image1bit.On)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		s.img.SetBit(r.Min.X, y, image1bit.On)
		s.img.SetBit(r.Max.X-1, y, image1bit.On)
	}
}

func (s *Screen) text(x, y int, str string) {
	d := font.Drawer{
		Dst:  s.img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(str)
}

func (s *Screen) flush() {
	if err := s.panel.Draw(s.img.Bounds(), s.img, image.Point{}); err != nil {
		if !s.failed {
			log.Printf("display: draw: %v", err)
		}
		s.failed = true
		return
	}
	s.failed = false
}

// DrawSplash shows the start-up screen.
func (s *Screen) DrawSplash(ambient int, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()
	s.outline(splashBx)
	s.text(9, 21, "Solder Station")
	s.text(9, 45, "Firmware: v"+version)
	s.text(9, 60, fmt.Sprintf("Ambient:  %d'C", ambient))
	s.flush()
}

// DrawDefault shows the default screen and re-enables live updates.
func (s *Screen) DrawDefault() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.message = false
	s.nextDraw = time.Time{}
	s.clear()
	s.outline(setBox)
	s.outline(tipBox)
	s.outline(barBox)
	s.text(setBox.Min.X+5, setBox.Min.Y+14, "Set")
	s.text(tipBox.Min.X+5, tipBox.Min.Y+14, "Tip")
	s.flush()
}

// UpdateLive refreshes the values on the default screen. It does nothing
// while a message is shown.
func (s *Screen) UpdateLive(v Live) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.message {
		return
	}

	now := s.now()
	if !now.Before(s.nextDraw) || v.TipTemp < s.shownTip-1 || v.TipTemp > s.shownTip+1 {
		s.nextDraw = now.Add(s.refresh)
		s.shownTip = v.TipTemp
		s.shownPower = v.Power
	}

	s.fill(setBox.Inset(1), image1bit.Off)
	s.fill(tipBox.Inset(1), image1bit.Off)
	s.fill(barBox.Inset(1), image1bit.Off)
	s.text(setBox.Min.X+5, setBox.Min.Y+14, "Set")
	s.text(tipBox.Min.X+5, tipBox.Min.Y+14, "Tip")
	s.text(setBox.Min.X+5, setBox.Min.Y+33, fmt.Sprintf("%d'C", v.SetTemp))
	s.text(tipBox.Min.X+5, tipBox.Min.Y+33, fmt.Sprintf("%d'C", s.shownTip))

	inner := barBox.Inset(1)
	power := s.shownPower
	if power < 0 {
		power = 0
	}
	if power > 1 {
		power = 1
	}
	w := int(power * float64(inner.Dx()))
	s.fill(image.Rect(inner.Min.X, inner.Max.Y-4, inner.Min.X+w, inner.Max.Y), image1bit.On)
	s.text(inner.Min.X+3, inner.Min.Y+11, v.State)
	s.flush()
}

// ShowMessage replaces the screen with a message until the next DrawDefault.
func (s *Screen) ShowMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.message = true
	s.clear()
	s.outline(msgBox)
	s.text(msgBox.Min.X+5, msgBox.Min.Y+16, m.Text())
	s.flush()
}

// SSD1306 is a Screen on an I2C SSD1306 panel.
type SSD1306 struct {
	*Screen
	bus i2c.BusCloser
	dev *ssd1306.Dev
}

// OpenSSD1306 opens the panel on the named I2C bus.
func OpenSSD1306(bus string, contrast uint8, refresh time.Duration) (*SSD1306, error) {
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(b, &ssd1306.DefaultOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("open ssd1306: %w", err)
	}
	if err := dev.SetContrast(contrast); err != nil {
		log.Printf("display: set contrast: %v", err)
	}
	return &SSD1306{
		Screen: NewScreen(dev, refresh, time.Now),
		bus:    b,
		dev:    dev,
	}, nil
}

// Close blanks the panel and releases the bus.
func (d *SSD1306) Close() error {
	if err := d.dev.Halt(); err != nil {
		log.Printf("display: halt: %v", err)
	}
	return d.bus.Close()
}
