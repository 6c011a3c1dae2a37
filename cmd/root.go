package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/patient-sim/patient-sim/sim"
	"github.com/patient-sim/patient-sim/sim/stats"
	"github.com/patient-sim/patient-sim/sim/store"
	"github.com/patient-sim/patient-sim/sim/trace"
)

var (
	configPath string // Policy bundle YAML
	seed       int64  // Master seed of the partitioned RNG
	patients   int    // Cohort size
	months     int    // Simulation horizon in months
	workers    int    // Parallel patient workers
	logLevel   string // Log verbosity level
	traceLevel string // Event trace level (none, events)
	dbPath     string // SQLite event sink; empty disables
	metricsOut string // Prometheus text file; empty disables
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "patient-sim",
	Short: "Monthly microsimulation of patient disease and treatment trajectories",
}

// runCmd executes a cohort using the policy bundle and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a cohort simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		bundle, err := sim.LoadBundle(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load policy bundle: %v", err)
		}
		applyRunConfig(bundle.Run, cmd.Flags().Changed)
		if patients <= 0 {
			logrus.Fatalf("--patients must be > 0, got %d", patients)
		}
		if months <= 0 {
			logrus.Fatalf("--months must be > 0, got %d", months)
		}
		if workers < 1 {
			logrus.Fatalf("--workers must be >= 1, got %d", workers)
		}
		tables := &bundle.Tables
		if err := tables.Validate(); err != nil {
			logrus.Fatalf("Invalid policy bundle: %v", err)
		}

		run := sim.NewRun(sim.NewSimulationKey(seed), tables, months, workers)
		collector := stats.NewCollector(run.ID)
		observers := sim.Observers{collector}

		st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(traceLevel)})
		if st.Enabled() {
			observers = append(observers, &sim.TraceObserver{Trace: st})
		}

		var sink *store.Store
		if dbPath != "" {
			sink, err = store.Open(cmd.Context(), dbPath, run.ID)
			if err != nil {
				logrus.Fatalf("Failed to open event store: %v", err)
			}
			observers = append(observers, sink)
		}

		logrus.Infof("Starting run %s: patients=%d, months=%d, workers=%d, seed=%d", run.ID, patients, months, workers, seed)
		startTime := time.Now()
		if _, err := run.RunCohort(cmd.Context(), patients, observers); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		if sink != nil {
			if err := sink.Close(); err != nil {
				logrus.Fatalf("Event store failed: %v", err)
			}
		}

		collector.Print(os.Stdout)
		if st.Enabled() {
			printTraceSummary(trace.Summarize(st))
		}
		if metricsOut != "" {
			if err := collector.WriteTextfile(metricsOut); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		logrus.Infof("Simulation complete in %s.", time.Since(startTime))
	},
}

// applyRunConfig fills flags the user did not set explicitly from the
// bundle's run section. Explicit flags always win.
func applyRunConfig(cfg sim.RunConfig, changed func(name string) bool) {
	if cfg.Seed != nil && !changed("seed") {
		seed = *cfg.Seed
	}
	if cfg.Patients != nil && !changed("patients") {
		patients = *cfg.Patients
	}
	if cfg.Months != nil && !changed("months") {
		months = *cfg.Months
	}
	if cfg.Workers != nil && !changed("workers") {
		workers = *cfg.Workers
	}
}

func printTraceSummary(summary *trace.TraceSummary) {
	fmt.Println("=== Event Summary ===")
	fmt.Printf("Total events         : %d\n", summary.TotalEvents)
	fmt.Printf("Patients with events : %d\n", summary.UniquePatients)
	kinds := make([]string, 0, len(summary.KindDistribution))
	for k := range summary.KindDistribution {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  %-20s: %d\n", k, summary.KindDistribution[trace.Kind(k)])
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "defaults.yaml", "Path to the policy bundle YAML")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for reproducible runs")
	runCmd.Flags().IntVar(&patients, "patients", 1000, "Number of patients to simulate")
	runCmd.Flags().IntVar(&months, "months", 240, "Simulation horizon in months")
	runCmd.Flags().IntVar(&workers, "workers", 1, "Number of parallel patient workers")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Event trace level (none, events)")
	runCmd.Flags().StringVar(&dbPath, "db", "", "SQLite file receiving events and summaries")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus text-format metrics to this file")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
