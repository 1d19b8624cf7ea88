// Package main provides a performance benchmarking tool for the vegchange CLI.
// It measures the demo pipeline over areas of increasing size, running each case
// multiple times, treating the first successful cached run as cold and averaging the
// rest as warm, generating CSV output for performance analysis and documentation.
//
// Prerequisites:
// - vegchange binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory where the SQLite cache and analysis databases are created
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Area        string
	Case        string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkCase is one set of demo arguments benchmarked over every area.
type BenchmarkCase struct {
	Name string
	Args []string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir     string
	Timeout     time.Duration
	Workers     int
	NoCacheRuns int
	CacheRuns   int
	Areas       []string
	AreaBBoxes  map[string]string
	Cases       []BenchmarkCase
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:     os.Args[1],
		Timeout:     5 * time.Minute,
		Workers:     8,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Areas:       []string{"small", "medium", "large"},
		AreaBBoxes: map[string]string{
			"small":  "-70.62,-33.47,-70.58,-33.43",
			"medium": "-70.65,-33.50,-70.55,-33.40",
			"large":  "-70.80,-33.65,-70.40,-33.25",
		},
		Cases: []BenchmarkCase{
			{Name: "baseline", Args: []string{"--periods", "2010s,present", "--indices", "ndvi"}},
			{Name: "all-periods", Args: []string{"--indices", "ndvi,nbr"}},
			{Name: "sequential", Args: []string{"--indices", "ndvi,nbr,ndmi", "--sequential"}},
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clearing cache...\n")
	clearCmd := exec.Command("vegchange", "cache", "clear")
	clearCmd.Env = benchmarkEnv(config)
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	} else {
		fmt.Printf("Cache cleared successfully\n")
	}

	results := runBenchmarks(config)

	if err := saveResults(config, results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(config, results)
}

// checkPrerequisites verifies that the vegchange binary and the work directory exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("vegchange"); err != nil {
		return fmt.Errorf("vegchange binary not found in PATH")
	}
	if err := os.MkdirAll(config.WorkDir, 0o755); err != nil {
		return fmt.Errorf("cannot create work dir %s: %w", config.WorkDir, err)
	}
	return nil
}

// benchmarkEnv keeps the benchmark databases out of the user's home directory.
func benchmarkEnv(config BenchmarkConfig) []string {
	return append(os.Environ(),
		"VEGCHANGE_CACHE_DB_CONNECT="+filepath.Join(config.WorkDir, "bench_cache.db"),
		"VEGCHANGE_ANALYSIS_BACKEND=none",
		"VEGCHANGE_EPHEMERAL_BACKEND=none",
	)
}

// runBenchmarks executes every case across the configured areas
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d areas, %d cases, %v timeout, %d workers, no-cache: %d runs, cache: %d runs\n",
		len(config.Areas), len(config.Cases), config.Timeout, config.Workers, config.NoCacheRuns, config.CacheRuns)

	for _, area := range config.Areas {
		fmt.Printf("Benchmarking %s area (%s)\n", area, config.AreaBBoxes[area])
		for _, c := range config.Cases {
			results = append(results, runBenchmarkSuite(config, area, c))
		}
	}

	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a case
func runBenchmarkSuite(config BenchmarkConfig, area string, c BenchmarkCase) BenchmarkResult {
	fmt.Printf("Running %s on %s\n", c.Name, area)

	args := append([]string{"demo", "--bbox", config.AreaBBoxes[area], "--workers", fmt.Sprint(config.Workers), "--output", "json"}, c.Args...)

	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, args, cacheBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Area:        area,
		Case:        c.Name,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes the demo command multiple times with the given cache backend.
// With a cache, the first run is cold and the rest are warm; without one every run counts.
func runBenchmark(config BenchmarkConfig, args []string, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args = append(slices.Clone(args), "--cache-backend", cacheBackend)

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()

		cmd := exec.Command("vegchange", args...)
		cmd.Env = benchmarkEnv(config)

		done := make(chan bool)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			<-done
		}
	}

	if len(times) == 0 {
		return 0, nil
	}
	if cacheBackend == "none" {
		return 0, times
	}
	return times[0], times[1:]
}

// isSuccess checks that the output carries a statistics document
func isSuccess(output []byte) bool {
	s := string(output)
	return strings.Contains(s, `"statistics"`) && strings.Contains(s, `"reference"`)
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(config BenchmarkConfig, results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(config.WorkDir, fmt.Sprintf("vegchange_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"area", "case", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Area, result.Case, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary grouped by case
func printSummary(config BenchmarkConfig, results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, c := range config.Cases {
		fmt.Printf("%s:\n", c.Name)
		for _, result := range results {
			if result.Case == c.Name {
				fmt.Printf("  %-8s: No-cache: %s, Cold: %s, Warm: %s\n", result.Area, result.NoCacheTime, result.ColdTime, result.WarmTime)
			}
		}
	}
}
