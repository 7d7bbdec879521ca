package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/uemu/datarecording"
)

var traceFlags struct {
	limit     int
	offset    int
	eventType string
	processor int
}

// traceEventRow mirrors the trace_events table recorded during a run.
type traceEventRow struct {
	Timestamp   float64
	EventType   string
	ProcessorID int
	ThreadID    string
	Address     int64
	Data        string
}

var traceCmd = &cobra.Command{
	Use:   "trace <database file>",
	Short: "List trace events recorded with --record",
	Args:  cobra.ExactArgs(1),
	RunE:  listTrace,
}

func init() {
	f := traceCmd.Flags()

	f.IntVar(&traceFlags.limit, "limit", 100,
		"maximum number of events to list, 0 for all")
	f.IntVar(&traceFlags.offset, "offset", 0,
		"number of events to skip")
	f.StringVar(&traceFlags.eventType, "type", "",
		"only list events of this type")
	f.IntVar(&traceFlags.processor, "processor", -1,
		"only list events of this processor")

	rootCmd.AddCommand(traceCmd)
}

func listTrace(cmd *cobra.Command, args []string) error {
	reader := datarecording.NewDataReader(args[0])
	defer reader.Close()

	reader.MapTable("trace_events", traceEventRow{})

	params := datarecording.QueryParams{
		Limit:   traceFlags.limit,
		Offset:  traceFlags.offset,
		OrderBy: "Timestamp",
	}

	if traceFlags.eventType != "" {
		params.Where = "EventType = ?"
		params.Args = append(params.Args, traceFlags.eventType)
	}

	if traceFlags.processor >= 0 {
		if params.Where != "" {
			params.Where += " AND "
		}
		params.Where += "ProcessorID = ?"
		params.Args = append(params.Args, traceFlags.processor)
	}

	results, totalCount, err := reader.Query(
		cmd.Context(), "trace_events", params)
	if err != nil {
		return err
	}

	for _, r := range results {
		e := r.(*traceEventRow)

		line := fmt.Sprintf("%.6f %-14s cpu=%d",
			e.Timestamp, e.EventType, e.ProcessorID)
		if e.ThreadID != "" {
			line += " thread=" + e.ThreadID
		}
		if e.Address >= 0 {
			line += fmt.Sprintf(" addr=0x%x", e.Address)
		}
		if e.Data != "" {
			line += " " + e.Data
		}

		fmt.Println(line)
	}

	fmt.Printf("%d of %d events\n", len(results), totalCount)

	return nil
}
