// Package report renders valuation results into SVG line charts for the CLI
// and the web UI.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cclview/cclview/pkg/models"
)

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 800)
	Height       int    // SVG height in pixels (default: 400)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 60)
	MarginBottom int    // bottom margin (default: 50)
	MarginLeft   int    // left margin (default: 70)
	BgColor      string // background color (default: "#ffffff")
	GridColor    string // grid line color (default: "#e8e8e8")
	TextColor    string // axis label color (default: "#333333")
	FontSize     int    // axis label font size (default: 11)
	Title        string // chart title
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       400,
		MarginTop:    40,
		MarginRight:  60,
		MarginBottom: 50,
		MarginLeft:   70,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

var seriesColors = []string{"#2196f3", "#ff9800", "#4caf50", "#e91e63", "#9c27b0", "#00bcd4"}

// ValuationChart renders a valuation result as an SVG line chart. The X axis
// is the union of every series' dates; a series simply has no segment on
// dates where it is undefined. When the result spans the zero axis a dashed
// zero line is drawn, which is how return charts show which instruments are
// under water.
func ValuationChart(v *models.Valuation, cfg ChartConfig) string {
	if v == nil || len(v.Series) == 0 {
		return emptySVG(cfg, "No data")
	}

	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	if cfg.Title == "" {
		cfg.Title = chartTitle(v.Mode)
	}

	px, py, pw, ph := cfg.plotArea()

	axis := dateAxis(v)
	if len(axis) == 0 {
		return emptySVG(cfg, "No data points")
	}
	axisIndex := make(map[string]int, len(axis))
	for i, d := range axis {
		axisIndex[d] = i
	}

	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	for _, s := range v.Series {
		for _, p := range s.Points {
			if p.Value < minVal {
				minVal = p.Value
			}
			if p.Value > maxVal {
				maxVal = p.Value
			}
		}
	}
	vRange := maxVal - minVal
	if vRange < 0.001 {
		vRange = 1
	}
	minVal -= vRange * 0.05
	maxVal += vRange * 0.05
	vRange = maxVal - minVal

	xOf := func(i int) float64 {
		if len(axis) == 1 {
			return float64(px) + float64(pw)/2
		}
		return float64(px) + float64(i)*float64(pw)/float64(len(axis)-1)
	}
	yOf := func(val float64) float64 {
		return float64(py+ph) - (val-minVal)/vRange*float64(ph)
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor))
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title)))

	// Y-axis grid
	gridLines := 5
	for i := 0; i <= gridLines; i++ {
		val := minVal + vRange*float64(i)/float64(gridLines)
		y := py + ph - int(float64(ph)*float64(i)/float64(gridLines))
		sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="%d" fill="%s" text-anchor="end">%.1f</text>`,
			px-5, y+4, cfg.FontSize, cfg.TextColor, val))
	}

	// Zero line when the chart spans the axis.
	if v.CrossesZero && minVal < 0 && maxVal > 0 {
		zeroY := yOf(0)
		sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#999" stroke-width="1" stroke-dasharray="4,4"/>`,
			px, zeroY, px+pw, zeroY))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="%d" fill="#999" text-anchor="end">0</text>`,
			px-5, zeroY+4, cfg.FontSize))
	}

	// Draw series
	for si, s := range v.Series {
		color := seriesColors[si%len(seriesColors)]

		var pathParts []string
		prevIdx := -2
		for _, p := range s.Points {
			i, ok := axisIndex[p.Date]
			if !ok {
				continue
			}
			// Break the path across gaps so undefined dates render as holes.
			cmd := "L"
			if i != prevIdx+1 || len(pathParts) == 0 {
				cmd = "M"
			}
			prevIdx = i
			pathParts = append(pathParts, fmt.Sprintf("%s%.1f,%.1f", cmd, xOf(i), yOf(p.Value)))
		}
		if len(pathParts) > 1 {
			sb.WriteString(fmt.Sprintf(`<path d="%s" fill="none" stroke="%s" stroke-width="2"/>`,
				strings.Join(pathParts, " "), color))
		}

		// Legend
		ly := py + 10 + si*16
		sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`,
			px+10, ly, px+30, ly, color))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`,
			px+35, ly+4, cfg.TextColor, escapeXML(s.Ticker)))
	}

	// X-axis date labels
	interval := len(axis) / 6
	if interval < 1 {
		interval = 1
	}
	for i := 0; i < len(axis); i += interval {
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
			xOf(i), py+ph+18, cfg.FontSize-1, cfg.TextColor, escapeXML(axis[i])))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// dateAxis returns the sorted union of all series' dates. ISO dates sort
// correctly as strings.
func dateAxis(v *models.Valuation) []string {
	seen := make(map[string]bool)
	var axis []string
	for _, s := range v.Series {
		for _, p := range s.Points {
			if !seen[p.Date] {
				seen[p.Date] = true
				axis = append(axis, p.Date)
			}
		}
	}
	sort.Strings(axis)
	return axis
}

func chartTitle(mode models.DisplayMode) string {
	switch mode {
	case models.ModeReturnToPresent:
		return "Return to Present (%)"
	case models.ModeReturnFromStart:
		return "Return from Start (%)"
	default:
		return "Listed Prices"
	}
}

// --- SVG helpers ---

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
