package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/uemu/monitoring"
	"github.com/sarchlab/uemu/tracing"
	"github.com/sarchlab/uemu/viz"
	"github.com/sarchlab/uemu/vm"
)

var runFlags struct {
	maxCycles       int
	numProcessors   int
	memoryCapacity  uint64
	detailedMetrics bool
	noTracing       bool
	traceJSON       bool
	traceCSV        bool
	recordPath      string
	record          bool
	monitorPort     int
	monitor         bool
	openBrowser     bool
	report          bool
}

var runCmd = &cobra.Command{
	Use:   "run <program file>",
	Short: "Run an assembly program",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgram,
}

func init() {
	f := runCmd.Flags()

	f.IntVar(&runFlags.maxCycles, "max-cycles", envInt("UEMU_MAX_CYCLES", 0),
		"stop after this many cycles, 0 for no limit")
	f.IntVar(&runFlags.numProcessors, "processors", 1,
		"number of processors")
	f.Uint64Var(&runFlags.memoryCapacity, "memory", 65536,
		"memory capacity in bytes")
	f.BoolVar(&runFlags.detailedMetrics, "detailed-metrics", false,
		"track instruction breakdowns, histograms, and snapshots")
	f.BoolVar(&runFlags.noTracing, "no-tracing", false,
		"disable execution tracing")
	f.BoolVar(&runFlags.traceJSON, "trace-json", false,
		"stream trace events into a JSON file")
	f.BoolVar(&runFlags.traceCSV, "trace-csv", false,
		"stream trace events into a CSV file")
	f.BoolVar(&runFlags.record, "record", false,
		"record trace events into a SQLite database")
	f.StringVar(&runFlags.recordPath, "record-path", "",
		"database path for --record, generated when empty")
	f.BoolVar(&runFlags.monitor, "monitor", false,
		"serve a monitoring API while running")
	f.IntVar(&runFlags.monitorPort, "monitor-port",
		envInt("UEMU_MONITOR_PORT", 0),
		"port for --monitor, random when 0")
	f.BoolVar(&runFlags.openBrowser, "open-browser", false,
		"open the monitoring URL in the default browser")
	f.BoolVar(&runFlags.report, "report", false,
		"print a summary report after the run")

	rootCmd.AddCommand(runCmd)
}

func envInt(name string, fallback int) int {
	s := os.Getenv(name)
	if s == "" {
		return fallback
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}

	return v
}

func runProgram(_ *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	machine := buildMachine()

	var monitor *monitoring.Monitor
	var runBar *monitoring.ProgressBar

	if runFlags.monitor {
		monitor = monitoring.NewMonitor()
		if runFlags.monitorPort > 0 {
			monitor = monitor.WithPortNumber(runFlags.monitorPort)
		}
		if runFlags.openBrowser {
			monitor = monitor.WithBrowserLaunch()
		}

		monitor.RegisterMachine(machine)
		monitor.StartServer()

		runBar = monitor.TrackRun(args[0], uint64(runFlags.maxCycles))
	}

	_, err = machine.LoadProgram(strings.Split(string(content), "\n"))
	if err != nil {
		return err
	}

	cycles := machine.Run(runFlags.maxCycles)

	if monitor != nil {
		monitor.CompleteProgressBar(runBar)
	}

	fmt.Printf("Executed %d cycles, machine %s\n", cycles, machine.State())

	if runFlags.report {
		report := viz.NewVisualizationSystem(
			machine.Tracer(), machine.Metrics())
		fmt.Println(report.SummaryReport())
	}

	atexit.Exit(0)

	return nil
}

func buildMachine() *vm.VirtualMachine {
	b := vm.MakeBuilder().
		WithNumProcessors(runFlags.numProcessors).
		WithMemoryCapacity(runFlags.memoryCapacity)

	if runFlags.noTracing {
		b = b.WithoutTracing()
	}

	if runFlags.detailedMetrics {
		b = b.WithDetailedMetrics()
	}

	if runFlags.record {
		b = b.WithDataRecording(runFlags.recordPath)
	}

	machine := b.Build()

	if tracer := machine.Tracer(); tracer != nil {
		if runFlags.traceJSON {
			tracer.AttachWriter(tracing.NewJSONTraceWriter())
		}
		if runFlags.traceCSV {
			tracer.AttachWriter(tracing.NewCSVTraceWriter())
		}
	}

	return machine
}
