package portfolio

// Palette is an ordered list of hex colors cycled by first-seen label order.
type Palette []string

// DefaultPalette is used when no palette is configured.
var DefaultPalette = Palette{
	"#4E79A7",
	"#F28E2B",
	"#E15759",
	"#76B7B2",
	"#59A14F",
	"#EDC948",
	"#B07AA1",
	"#FF9DA7",
	"#9C755F",
	"#BAB0AC",
}

// Assign maps each distinct label to palette[firstSeenIndex % len(palette)].
func (p Palette) Assign(labels []string) map[string]string {
	if len(p) == 0 {
		p = DefaultPalette
	}
	colors := make(map[string]string, len(labels))
	for _, label := range labels {
		if _, ok := colors[label]; ok {
			continue
		}
		colors[label] = p[len(colors)%len(p)]
	}
	return colors
}

// Colorize returns copies of the charts with every uncolored entry filled in.
// Labels are numbered by first appearance across the charts in the given order,
// so a label keeps one color in every chart of the same call.
func (p Palette) Colorize(charts ...[]Entry) [][]Entry {
	var labels []string
	for _, chart := range charts {
		for _, e := range chart {
			if e.Color == "" {
				labels = append(labels, e.Label)
			}
		}
	}
	colors := p.Assign(labels)

	out := make([][]Entry, len(charts))
	for i, chart := range charts {
		cp := make([]Entry, len(chart))
		copy(cp, chart)
		for j := range cp {
			if cp[j].Color == "" {
				cp[j].Color = colors[cp[j].Label]
			}
		}
		out[i] = cp
	}
	return out
}
