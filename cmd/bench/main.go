package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/i5heu/GoSPSC/internal/queue"
	"github.com/i5heu/GoSPSC/internal/testbench"
	"github.com/i5heu/GoSPSC/pkg/buffered"
	"github.com/i5heu/GoSPSC/pkg/config"
	"github.com/i5heu/GoSPSC/pkg/spsc"
)

// BenchmarkResult holds results for one test run.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	Scenario            string  `json:"scenario"`
	Capacity            uint64  `json:"capacity"`
	MaxBurst            int     `json:"max_burst"`
	NumMessages         int64   `json:"num_messages"`          // produced count
	NumMessagesConsumed int64   `json:"num_messages_consumed"` // consumed count
	NumRejected         int64   `json:"num_rejected"`          // TrySend calls on a full queue
	NumEmpty            int64   `json:"num_empty"`             // TryRecv calls on an empty queue
	TestDuration        string  `json:"test_duration"`         // e.g. "2s"
	ActualElapsed       string  `json:"actual_elapsed"`        // measured time
	Throughput          float64 `json:"throughput_msgs_sec"`   // based on consumed count
	Timestamp           int64   `json:"timestamp"`
	GoVersion           string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

type (
	pairSender   = queue.SenderInterface[*int]
	pairReceiver = queue.ReceiverInterface[*int]
)

// Implementation represents a queue implementation.
type Implementation struct {
	name        string
	description string
	pkgName     string
	authors     []string
	features    []string
	newPair     func(capacity uint64) (pairSender, pairReceiver)
}

// Compile-time checks that every pair satisfies the shared interfaces.
var (
	_ pairSender   = (*spsc.Sender[*int])(nil)
	_ pairReceiver = (*spsc.Receiver[*int])(nil)
	_ pairSender   = (*buffered.Sender[*int])(nil)
	_ pairReceiver = (*buffered.Receiver[*int])(nil)
)

// outputMarkdownTable loads the JSON file and outputs a Markdown table.
func outputMarkdownTable(jsonFile string) {
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading JSON file %q: %v\n", jsonFile, err)
		os.Exit(1)
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshalling JSON: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "No sessions found in JSON.")
		os.Exit(1)
	}
	fmt.Print(renderMarkdownTable(sessions[len(sessions)-1]))
}

// renderMarkdownTable averages the throughput per implementation and scenario
// of one session and renders it sorted by throughput.
func renderMarkdownTable(session FullReport) string {
	implMetaMap := make(map[string]Implementation)
	for _, impl := range getImplementations() {
		implMetaMap[impl.name] = impl
	}

	type key struct{ impl, scenario string }
	type tableRow struct {
		implementation string
		scenario       string
		pkgName        string
		features       string
		throughput     float64
		runs           int
	}
	byKey := make(map[key]*tableRow)
	var rows []*tableRow
	for _, bench := range session.Benchmarks {
		k := key{bench.Implementation, bench.Scenario}
		row, ok := byKey[k]
		if !ok {
			row = &tableRow{implementation: bench.Implementation, scenario: bench.Scenario}
			if meta, ok := implMetaMap[bench.Implementation]; ok {
				row.pkgName = meta.pkgName
				row.features = strings.Join(meta.features, ", ")
			}
			byKey[k] = row
			rows = append(rows, row)
		}
		row.throughput += bench.Throughput
		row.runs++
	}
	for _, r := range rows {
		r.throughput /= float64(r.runs)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].throughput > rows[j].throughput
	})

	var b strings.Builder
	b.WriteString("## Last Session Benchmark Summary\n\n")
	b.WriteString("| Implementation           | Scenario   | Package  | Features                    | Throughput (msgs/sec) |\n")
	b.WriteString("|--------------------------|------------|----------|-----------------------------|-----------------------|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %-24s | %-10s | %-8s | %-27s | %21.0f |\n",
			r.implementation, r.scenario, r.pkgName, r.features, r.throughput)
	}
	return b.String()
}

func main() {
	// Flags.
	testIterations := flag.Int("iter", 5, "Number of test iterations per scenario")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test common CPU/vCPU values up to runtime.NumCPU()")
	configFile := flag.String("config", "", "YAML file with benchmark scenarios (default: built-in capacity sweep)")
	durationFlag := flag.Duration("duration", 0, "If non-zero, override the duration of every scenario")
	jsonExport := flag.Bool("json", false, "Export results as JSON to test-results.json")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from test-results.json and exit")
	jsonFileForMarkdown := flag.String("jsonfile", "test-results.json", "Path to JSON file for markdown table")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	flag.Parse()

	if *markdownTable {
		outputMarkdownTable(*jsonFileForMarkdown)
		return
	}

	scenarios := config.DefaultScenarios()
	if *configFile != "" {
		var err error
		scenarios, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading scenarios: %v\n", err)
			os.Exit(1)
		}
	}
	if *durationFlag > 0 {
		for i := range scenarios {
			scenarios[i].Duration = *durationFlag
		}
	}

	trueCpuCount := runtime.NumCPU()
	cpuSettings := cpuSettingsFor(*cpuMaxFlag, trueCpuCount)

	// Calculate total number of tests for progress tracking.
	impls := getImplementations()
	totalTests := len(cpuSettings) * len(scenarios) * (*testIterations) * len(impls)

	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(totalTests,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("benchmarking"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionSetWidth(20),
			progressbar.OptionClearOnFinish(),
		)
	}

	var allSessions []FullReport

	// Iterate over the desired GOMAXPROCS settings.
	for _, cpus := range cpuSettings {
		runtime.GOMAXPROCS(cpus)
		sysInfo := gatherSystemInfo()
		sysInfo.NumCPU = cpus
		sysInfo.TrueCPU = trueCpuCount
		sysInfo.SimulatedCPUCount = cpus

		// Print CPU header to stdout.
		fmt.Printf("\n=============================\n")
		fmt.Printf("GOMAXPROCS = %d\n", cpus)
		fmt.Printf("=============================\n")

		var results []BenchmarkResult

		for _, sc := range scenarios {
			fmt.Printf("  [Scenario: %s, capacity=%d, max_burst=%d, duration=%s]\n", sc.Name, sc.Capacity, sc.MaxBurst, sc.Duration)
			for iteration := 1; iteration <= *testIterations; iteration++ {
				fmt.Printf("    iteration %d/%d\n", iteration, *testIterations)
				for _, impl := range impls {
					runtime.GC()
					s, r := impl.newPair(sc.Capacity)

					res := testbench.RunTimedTest[*int](s, r, sc, func(i int) *int {
						v := i
						return &v
					})
					throughput := float64(res.Consumed) / res.Elapsed.Seconds()

					if bar != nil {
						bar.Clear()
					}
					fmt.Printf("    %s => produced=%d, consumed=%d, rejected=%d, empty=%d, throughput=%.0f msg/s, took=%v\n",
						impl.name, res.Produced, res.Consumed, res.Rejected, res.Empty, throughput, res.Elapsed)
					if res.Produced != res.Consumed {
						fmt.Fprintf(os.Stderr, "    %s lost messages: produced=%d consumed=%d\n", impl.name, res.Produced, res.Consumed)
					}
					if bar != nil {
						bar.Add(1)
					}

					results = append(results, BenchmarkResult{
						Implementation:      impl.name,
						Scenario:            sc.Name,
						Capacity:            sc.Capacity,
						MaxBurst:            sc.MaxBurst,
						NumMessages:         res.Produced,
						NumMessagesConsumed: res.Consumed,
						NumRejected:         res.Rejected,
						NumEmpty:            res.Empty,
						TestDuration:        sc.Duration.String(),
						ActualElapsed:       res.Elapsed.String(),
						Throughput:          throughput,
						Timestamp:           time.Now().Unix(),
						GoVersion:           runtime.Version(),
					})
				}
			}
		}

		allSessions = append(allSessions, FullReport{
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		})
	}

	if bar != nil {
		bar.Finish()
	}

	// If JSON export is requested, append the new sessions to test-results.json.
	if *jsonExport {
		const filename = "test-results.json"
		if err := appendSessions(filename, allSessions); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing JSON file:", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", filename)
	}
}

// cpuSettingsFor returns the GOMAXPROCS values to run. SPSC needs two
// goroutines, so settings start at 2 when the machine has them.
func cpuSettingsFor(cpuMax, trueCpuCount int) []int {
	if cpuMax > 0 {
		return []int{min(cpuMax, trueCpuCount)}
	}
	commonCPUs := []int{1, 2, 4, 8, 16, 32, 64}
	var out []int
	for _, v := range commonCPUs {
		if v <= trueCpuCount && (v > 1 || trueCpuCount == 1) {
			out = append(out, v)
		}
	}
	return out
}

// appendSessions appends sessions to the JSON array stored in filename.
func appendSessions(filename string, sessions []FullReport) error {
	var previous []FullReport
	if data, err := os.ReadFile(filename); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &previous); err != nil {
			return fmt.Errorf("decode %s: %w", filename, err)
		}
	}
	data, err := json.MarshalIndent(append(previous, sessions...), "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}

// gatherSystemInfo collects basic CPU and memory details.
func gatherSystemInfo() SystemInfo {
	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return SystemInfo{
		NumCPU:      runtime.NumCPU(),
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      runtime.GOARCH,
		TotalMemory: totalMemory,
	}
}

// getImplementations enumerates the queue implementations under test.
func getImplementations() []Implementation {
	return []Implementation{
		{
			name:        "SPSC Ring",
			pkgName:     "spsc",
			description: "Bounded lock-free single-producer/single-consumer ring with split Sender/Receiver handles.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"SPSC", "FIFO", "Lock-Free", "Drain-On-Close"},
			newPair: func(capacity uint64) (pairSender, pairReceiver) {
				return spsc.New[*int](capacity)
			},
		},
		{
			name:        "Golang Buffered Channel",
			pkgName:     "buffered",
			description: "A buffered Go channel polled with select/default; capacity 0 is raised to 1.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"SPSC", "FIFO"},
			newPair: func(capacity uint64) (pairSender, pairReceiver) {
				return buffered.New[*int](capacity)
			},
		},
	}
}
