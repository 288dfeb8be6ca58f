package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// BenchmarkResult holds the fields of one bench result that the graph needs.
type BenchmarkResult struct {
	Implementation      string `json:"implementation"`
	Scenario            string `json:"scenario"`
	Capacity            uint64 `json:"capacity"`
	NumMessagesConsumed int64  `json:"num_messages_consumed"` // consumed count
	ActualElapsed       string `json:"actual_elapsed"`        // measured time
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int `json:"num_cpu"`
	SimulatedCPUCount int `json:"simulated_cpu_count,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// capacityStats holds "5%-avg-min", median, and "5%-avg-max" for one capacity.
type capacityStats struct {
	x        float64 // category index plus per-implementation offset
	capacity float64
	min      float64 // "average of bottom 5%"
	median   float64
	max      float64 // "average of top 5%"
}

// statsPoints implements XYer and YErrorer so we can plot lines + error bars.
type statsPoints []capacityStats

func (s statsPoints) Len() int                { return len(s) }
func (s statsPoints) XY(i int) (x, y float64) { return s[i].x, s[i].median }
func (s statsPoints) YError(i int) (low, high float64) {
	return s[i].median - s[i].min, s[i].max - s[i].median
}

// categoryTicks implements a categorical X-axis: 0,1,2,... => capacity labels.
type categoryTicks struct {
	positions []float64
	labels    []string
}

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, pos := range ct.positions {
		if pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: ct.labels[i]})
		}
	}
	return ticks
}

// samples maps implementation -> capacity -> ns/msg values.
type samples map[string]map[float64][]float64

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing test sessions")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	flag.Parse()

	data, err := os.ReadFile(*jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading JSON file: %v\n", err)
		os.Exit(1)
	}

	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshalling JSON: %v\n", err)
		os.Exit(1)
	}

	for cpus, byImpl := range groupByCPU(sessions) {
		p := newPlot(cpus, byImpl)
		filename := fmt.Sprintf("%s_%d.png", *outputPrefix, cpus)
		if err := p.Save(12*vg.Inch, 9*vg.Inch, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving plot for %d CPU(s): %v\n", cpus, err)
			continue
		}
		fmt.Printf("Graph for %d CPU(s) saved to %s\n", cpus, filename)
	}
}

// groupByCPU turns sessions into ns/msg samples per CPU count. Runs that
// consumed nothing (capacity 0) carry no timing and are skipped.
func groupByCPU(sessions []FullReport) map[int]samples {
	out := make(map[int]samples)
	for _, session := range sessions {
		cpus := session.SystemInfo.SimulatedCPUCount
		if cpus == 0 {
			cpus = session.SystemInfo.NumCPU
		}
		if _, ok := out[cpus]; !ok {
			out[cpus] = make(samples)
		}

		for _, b := range session.Benchmarks {
			dur, err := time.ParseDuration(b.ActualElapsed)
			if err != nil || b.NumMessagesConsumed == 0 {
				continue
			}
			nsPerMsg := float64(dur.Nanoseconds()) / float64(b.NumMessagesConsumed)

			byImpl := out[cpus]
			if _, ok := byImpl[b.Implementation]; !ok {
				byImpl[b.Implementation] = make(map[float64][]float64)
			}
			x := float64(b.Capacity)
			byImpl[b.Implementation][x] = append(byImpl[b.Implementation][x], nsPerMsg)
		}
	}
	return out
}

func newPlot(cpus int, byImpl samples) *plot.Plot {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("SPSC (5%%-avg-min / Median / 5%%-avg-max) vs. Capacity for %d CPU(s)", cpus)
	p.X.Label.Text = "Capacity"
	p.Y.Label.Text = "Time per Msg (ns) [log scale]"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.TickerFunc(denseLogTicks)
	applyDarkTheme(p)
	p.Add(plotter.NewGrid())

	// Union of capacities, mapped to category indices.
	capSet := make(map[float64]struct{})
	for _, byCap := range byImpl {
		for c := range byCap {
			capSet[c] = struct{}{}
		}
	}
	var caps []float64
	for c := range capSet {
		caps = append(caps, c)
	}
	sort.Float64s(caps)

	category := make(map[float64]float64)
	var ticks categoryTicks
	for i, c := range caps {
		category[c] = float64(i)
		ticks.positions = append(ticks.positions, float64(i))
		ticks.labels = append(ticks.labels, strconv.FormatFloat(c, 'f', -1, 64))
	}
	p.X.Tick.Marker = ticks

	// Sort implementations alphabetically for consistent legend ordering.
	var implNames []string
	for name := range byImpl {
		implNames = append(implNames, name)
	}
	sort.Strings(implNames)

	colors := plotutil.SoftColors
	shapes := []draw.GlyphDrawer{
		draw.CircleGlyph{},
		draw.SquareGlyph{},
		draw.TriangleGlyph{},
		draw.CrossGlyph{},
		draw.PlusGlyph{},
	}

	// Slight offset so each implementation is visually separated.
	const offsetRange = 0.4
	offsetStep := offsetRange / float64(max(len(implNames), 1))
	startOffset := -offsetRange/2 + offsetStep/2

	for i, impl := range implNames {
		stats := buildStats(byImpl[impl])
		if len(stats) == 0 {
			continue
		}
		for j := range stats {
			stats[j].x = category[stats[j].capacity] + startOffset + float64(i)*offsetStep
		}
		sort.Slice(stats, func(a, b int) bool { return stats[a].x < stats[b].x })
		sp := statsPoints(stats)

		line, err := plotter.NewLine(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating line: %v\n", err)
			continue
		}
		line.Color = colors[i%len(colors)]

		points, err := plotter.NewScatter(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating scatter: %v\n", err)
			continue
		}
		points.GlyphStyle.Radius = vg.Points(5)
		points.Color = colors[i%len(colors)]
		points.Shape = shapes[i%len(shapes)]

		yErrBars, err := plotter.NewYErrorBars(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating error bars: %v\n", err)
			continue
		}
		yErrBars.Color = colors[i%len(colors)]

		p.Add(line, points, yErrBars)
		p.Legend.Add(impl, line, points)
	}
	return p
}

func applyDarkTheme(p *plot.Plot) {
	p.BackgroundColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	p.Title.TextStyle.Color = white
	p.X.Label.TextStyle.Color = white
	p.Y.Label.TextStyle.Color = white
	p.X.Color = white
	p.Y.Color = white
	p.X.Tick.Label.Color = white
	p.Y.Tick.Label.Color = white
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Color = white
}

// denseLogTicks places about one labelled tick every 30px of a 9 inch plot,
// evenly spaced in log10 between min and max.
func denseLogTicks(min, max float64) []plot.Tick {
	const nTicks = 648.0 / 30.0
	if min <= 0 {
		min = 1e-9
	}
	start := math.Log10(min)
	step := (math.Log10(max) - start) / nTicks

	var ticks []plot.Tick
	for i := 0.0; i <= nTicks; i++ {
		y := math.Pow(10, start+i*step)
		ticks = append(ticks, plot.Tick{Value: y, Label: formatNs(y)})
	}
	return ticks
}

// buildStats computes "average of bottom 5%", median, and "average of top 5%".
func buildStats(byCap map[float64][]float64) []capacityStats {
	var out []capacityStats
	for c, vals := range byCap {
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		out = append(out, capacityStats{
			x:        c,
			capacity: c,
			min:      averageOfRange(vals, 0.0, 0.05),
			median:   median(vals),
			max:      averageOfRange(vals, 0.95, 1.0),
		})
	}
	return out
}

// averageOfRange returns the average of sortedVals in [startFrac, endFrac] of its length.
// E.g. averageOfRange(vals, 0, 0.05) is the average of the bottom 5%.
func averageOfRange(sortedVals []float64, startFrac, endFrac float64) float64 {
	n := len(sortedVals)
	if n == 0 {
		return 0
	}
	startIndex := max(int(float64(n)*startFrac), 0)
	endIndex := min(int(float64(n)*endFrac), n)
	if startIndex >= endIndex {
		// fallback to median if 5% slice is too small
		return median(sortedVals)
	}
	sum := 0.0
	for _, v := range sortedVals[startIndex:endIndex] {
		sum += v
	}
	return sum / float64(endIndex-startIndex)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// formatNs nicely formats a nanoseconds value in ns, µs, ms, or s.
func formatNs(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.0fns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.1fµs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.1fms", ns/1e6)
	default:
		return fmt.Sprintf("%.2fs", ns/1e9)
	}
}
