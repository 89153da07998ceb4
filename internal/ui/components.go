package ui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// GlowRadius is the radius in pixels of the hover glow around inputs.
const GlowRadius = 100

// InputProps configures Input.
type InputProps struct {
	ID          string
	Name        string
	Type        string
	Placeholder string
	Value       string
	Class       string
	Required    bool
	Invalid     bool
}

// Input renders a text input inside the hover-glow wrapper.
func Input(p InputProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newMarkup(ctx, w)
		h.raw(`<div class="input-glow"`)
		h.attr("data-glow-radius", strconv.Itoa(GlowRadius))
		h.raw(`>`)
		writeInput(h, p)
		h.raw(`</div>`)
		return h.err
	})
}

func writeInput(h *markup, p InputProps) {
	typ := p.Type
	if typ == "" {
		typ = "text"
	}
	h.raw(`<input`)
	h.attr("class", classes("input", p.Class))
	h.attr("type", typ)
	h.attrIf(p.ID != "", "id", p.ID)
	h.attrIf(p.Name != "", "name", p.Name)
	h.attrIf(p.Placeholder != "", "placeholder", p.Placeholder)
	h.attrIf(p.Value != "", "value", p.Value)
	h.flag(p.Required, "required")
	if p.Invalid {
		h.attr("aria-invalid", "true")
		h.attrIf(p.ID != "", "aria-describedby", p.ID+"-error")
	}
	h.raw(`>`)
}

// Label renders a form label.
func Label(forID, text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newMarkup(ctx, w)
		h.raw(`<label class="label"`)
		h.attrIf(forID != "", "for", forID)
		h.raw(`>`)
		h.text(text)
		h.raw(`</label>`)
		return h.err
	})
}

// BottomGradient is the highlight line shown under hovered buttons.
func BottomGradient() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<span class="bottom-gradient" aria-hidden="true"></span><span class="bottom-gradient bottom-gradient-blur" aria-hidden="true"></span>`)
		return err
	})
}

// BoxRevealProps configures BoxReveal. Zero values take the defaults.
type BoxRevealProps struct {
	Width    string
	BoxColor string
	Duration float64
	Delay    float64
	Class    string
}

const (
	DefaultBoxRevealWidth    = "fit-content"
	DefaultBoxRevealColor    = "#5046e6"
	DefaultBoxRevealDuration = 0.5
	DefaultBoxRevealDelay    = 0.25
)

func (p BoxRevealProps) withDefaults() BoxRevealProps {
	if p.Width == "" {
		p.Width = DefaultBoxRevealWidth
	}
	if p.BoxColor == "" {
		p.BoxColor = DefaultBoxRevealColor
	}
	if p.Duration <= 0 {
		p.Duration = DefaultBoxRevealDuration
	}
	if p.Delay <= 0 {
		p.Delay = DefaultBoxRevealDelay
	}
	return p
}

// BoxReveal slides a colored box off child once it scrolls into view.
func BoxReveal(p BoxRevealProps, child templ.Component) templ.Component {
	p = p.withDefaults()
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newMarkup(ctx, w)
		h.raw(`<div`)
		h.attr("class", classes("box-reveal", p.Class))
		h.attr("style", fmt.Sprintf("position:relative;overflow:hidden;width:%s;--box-reveal-color:%s;--box-reveal-duration:%ss;--box-reveal-delay:%ss",
			p.Width, p.BoxColor, num(p.Duration), num(p.Delay)))
		h.raw(`><div class="box-reveal-content">`)
		h.render(child)
		h.raw(`</div><div class="box-reveal-slide" aria-hidden="true"></div></div>`)
		return h.err
	})
}

// RippleProps configures Ripple. Zero values take the defaults.
type RippleProps struct {
	MainCircleSize    int
	MainCircleOpacity float64
	NumCircles        int
	Class             string
}

const (
	DefaultRippleSize    = 210
	DefaultRippleOpacity = 0.24
	DefaultRippleCircles = 11
)

func (p RippleProps) withDefaults() RippleProps {
	if p.MainCircleSize <= 0 {
		p.MainCircleSize = DefaultRippleSize
	}
	if p.MainCircleOpacity <= 0 {
		p.MainCircleOpacity = DefaultRippleOpacity
	}
	if p.NumCircles <= 0 {
		p.NumCircles = DefaultRippleCircles
	}
	return p
}

// RippleCircle is the geometry of one ripple ring.
type RippleCircle struct {
	Size          int
	Opacity       float64
	Delay         float64 // seconds
	Dashed        bool
	BorderOpacity float64
}

// RippleCircles computes the rings: ring i grows by 50px, fades by 0.03 and
// starts 0.06s later than ring i-1. The outermost ring is dashed.
func RippleCircles(p RippleProps) []RippleCircle {
	p = p.withDefaults()
	circles := make([]RippleCircle, p.NumCircles)
	for i := range circles {
		circles[i] = RippleCircle{
			Size:          p.MainCircleSize + i*50,
			Opacity:       p.MainCircleOpacity - float64(i)*0.03,
			Delay:         float64(i) * 0.06,
			Dashed:        i == p.NumCircles-1,
			BorderOpacity: float64(5+i*5) / 200,
		}
	}
	return circles
}

// Ripple renders concentric animated rings behind the brand panel.
func Ripple(p RippleProps) templ.Component {
	p = p.withDefaults()
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newMarkup(ctx, w)
		h.raw(`<div`)
		h.attr("class", classes("ripple", p.Class))
		h.raw(` aria-hidden="true">`)
		for _, c := range RippleCircles(p) {
			style := "solid"
			if c.Dashed {
				style = "dashed"
			}
			h.raw(`<div class="ripple-circle"`)
			h.attr("style", fmt.Sprintf("width:%dpx;height:%dpx;opacity:%.2f;animation-delay:%.2fs;border-style:%s;border-color:rgba(var(--ripple-rgb), %.3f)",
				c.Size, c.Size, c.Opacity, c.Delay, style, c.BorderOpacity))
			h.raw(`></div>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// OrbitProps configures OrbitingCircles. Zero values take the defaults.
type OrbitProps struct {
	Class    string
	Reverse  bool
	Duration float64 // seconds per revolution
	Delay    float64 // seconds
	Radius   int
	HidePath bool
}

const (
	DefaultOrbitDuration = 20
	DefaultOrbitDelay    = 10
	DefaultOrbitRadius   = 50
)

func (p OrbitProps) withDefaults() OrbitProps {
	if p.Duration <= 0 {
		p.Duration = DefaultOrbitDuration
	}
	if p.Delay <= 0 {
		p.Delay = DefaultOrbitDelay
	}
	if p.Radius <= 0 {
		p.Radius = DefaultOrbitRadius
	}
	return p
}

// OrbitingCircles moves child around a circular path.
func OrbitingCircles(p OrbitProps, child templ.Component) templ.Component {
	return orbit(p.withDefaults(), child)
}

func orbit(p OrbitProps, child templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newMarkup(ctx, w)
		if !p.HidePath {
			h.raw(`<svg class="orbit-path" xmlns="http://www.w3.org/2000/svg" version="1.1" aria-hidden="true"><circle cx="50%" cy="50%" fill="none"`)
			h.attr("r", strconv.Itoa(p.Radius))
			h.raw(`></circle></svg>`)
		}
		delay := -p.Delay
		if delay == 0 {
			delay = 0 // no "-0"
		}
		style := fmt.Sprintf("--duration:%s;--radius:%d;--delay:%s", num(p.Duration), p.Radius, num(delay))
		if p.Reverse {
			style += ";animation-direction:reverse"
		}
		h.raw(`<div`)
		h.attr("class", classes("orbit", p.Class))
		h.attr("style", style)
		h.raw(`>`)
		h.render(child)
		h.raw(`</div>`)
		return h.err
	})
}

// OrbitIcon is one icon of TechOrbitDisplay. Zero timing fields take the
// per-index defaults from ResolveOrbit.
type OrbitIcon struct {
	Component templ.Component
	Class     string
	Duration  float64
	Delay     float64
	Radius    int
	HidePath  bool
	Reverse   bool
}

// DefaultOrbitText is the caption in the middle of TechOrbitDisplay.
const DefaultOrbitText = "Animated Login"

// ResolveOrbit fills in icon i's orbit: duration 20+5i, delay 2i, radius 50+20i.
func ResolveOrbit(icon OrbitIcon, index int) OrbitProps {
	p := OrbitProps{
		Class:    icon.Class,
		Reverse:  icon.Reverse,
		Duration: icon.Duration,
		Delay:    icon.Delay,
		Radius:   icon.Radius,
		HidePath: icon.HidePath,
	}
	if p.Duration <= 0 {
		p.Duration = float64(20 + index*5)
	}
	if p.Delay <= 0 {
		p.Delay = float64(index * 2)
	}
	if p.Radius <= 0 {
		p.Radius = 50 + index*20
	}
	return p
}

// TechOrbitDisplay renders a caption with icons orbiting around it.
func TechOrbitDisplay(icons []OrbitIcon, text string) templ.Component {
	if text == "" {
		text = DefaultOrbitText
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newMarkup(ctx, w)
		h.raw(`<section class="orbit-display"><span class="orbit-display-text">`)
		h.text(text)
		h.raw(`</span>`)
		for i, icon := range icons {
			h.render(orbit(ResolveOrbit(icon, i), icon.Component))
		}
		h.raw(`</section>`)
		return h.err
	})
}

// Icon renders a trusted inline SVG.
func Icon(svg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, svg)
		return err
	})
}

func fieldID(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
