package perf

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/hmdlink/cmd/util"
	"github.com/ValentinKolb/hmdlink/rpc/client"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Measures the blocking call round trip against a running service",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__perf"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)

	// latency timers of the last benchmark round, one per test
	registry = gometrics.NewRegistry()
)

// test is one benchmarked operation, op gets a per goroutine counter
type test struct {
	name string
	op   func(c *client.NetClient, i int)
}

func init() {
	util.SetupClientFlags(PerfCmd)

	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set-int,get-int)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	PerfCmd.Flags().Int(key, 100, util.WrapString("How many different profile keys to use for the tests"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	c, err := util.NewClient()
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Println("Performance testing tool for hmdlink services")

	// Print configuration
	config := util.GetClientConfig()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Remote protocol: %s\n", remoteVersion(c))
	fmt.Println()

	fmt.Println("starting tests...")

	hmd := util.GetHMD()
	getKey := keys("int")
	getStringKey := keys("string")

	// seed the keys read by the get tests
	for i := 0; i < perfKeySpread; i++ {
		c.SetIntValue(hmd, getKey(i), i)
		c.SetStringValue(hmd, getStringKey(i), strconv.Itoa(i))
	}

	tests := []test{
		{"set-int", func(c *client.NetClient, i int) {
			if !c.SetIntValue(hmd, getKey(i), i) {
				log.Printf("(set-int) - service not reachable\n")
			}
		}},
		{"get-int", func(c *client.NetClient, i int) {
			c.GetIntValue(hmd, getKey(i), -1)
		}},
		{"set-string", func(c *client.NetClient, i int) {
			if !c.SetStringValue(hmd, getStringKey(i), "perf") {
				log.Printf("(set-string) - service not reachable\n")
			}
		}},
		{"get-string", func(c *client.NetClient, i int) {
			c.GetStringValue(hmd, getStringKey(i), "")
		}},
		{"driver-mode", func(c *client.NetClient, _ int) {
			if _, ok := c.GetDriverMode(); !ok {
				log.Printf("(driver-mode) - call failed\n")
			}
		}},
		{"get-numbers", func(c *client.NetClient, i int) {
			c.GetNumberValues(hmd, getKey(i), make([]float64, 4))
		}},
	}

	results := make(map[string]testing.BenchmarkResult)
	for _, t := range tests {
		result := benchmark(c, t)
		results[t.name] = result
		printResult(t.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, &config); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", csvPath)
	}

	registry.UnregisterAll()
	return nil
}

// benchmark runs t in parallel and records the latency of every call in a
// timer named after the test. Each benchmark round replaces the timer so
// that only the final round is reported.
func benchmark(c *client.NetClient, t test) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if shouldSkip(t.name) {
			return
		}

		registry.Unregister(t.name)
		timer := gometrics.GetOrRegisterTimer(t.name, registry)

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				t.op(c, counter)
				timer.UpdateSince(start)
				counter++
			}
		})
	})
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// keys returns a function mapping an index to one of perfKeySpread keys
func keys(prefix string) func(int) string {
	k := make([]string, perfKeySpread)
	for i := range k {
		k[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return func(i int) string {
		return k[i%perfKeySpread]
	}
}

func remoteVersion(c *client.NetClient) string {
	if v, ok := c.GetRemoteProtocolVersion(); ok {
		return v.String()
	}
	return "unknown"
}

// latency returns the p50, p99 and max latency recorded for test
func latency(test string) (p50, p99, maxLatency time.Duration, ok bool) {
	timer, isTimer := registry.Get(test).(gometrics.Timer)
	if !isTimer || timer.Count() == 0 {
		return 0, 0, 0, false
	}
	ps := timer.Percentiles([]float64{0.5, 0.99})
	return time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(timer.Max()), true
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
	if p50, p99, maxLatency, ok := latency(test); ok {
		fmt.Printf("\tp50=%s p99=%s max=%s", p50, p99, maxLatency)
	}
	fmt.Println()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"P50Ns", "P99Ns", "MaxNs",
		"Endpoint", "Threads", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		p50, p99, maxLatency, _ := latency(test)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strconv.FormatInt(int64(p50), 10),
			strconv.FormatInt(int64(p99), 10),
			strconv.FormatInt(int64(maxLatency), 10),
			config.Address(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
