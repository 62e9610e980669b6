package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lydakis/corehost/internal/dispatch"
	"github.com/lydakis/corehost/internal/ipc"
	"github.com/lydakis/corehost/internal/pkg/json"
	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show connection, performance, cache and subscription stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connectExistingFn()
			if err != nil {
				return err
			}
			defer client.Close()

			msg, err := roundTrip(client, &ipc.Request{Type: ipc.TypeStats})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				return writeJSON(out, msg)
			}

			report, err := decodeReport(msg)
			if err != nil {
				return err
			}
			return renderReport(out, report)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	return cmd
}

var resetTypes = map[string]string{
	"cache":      ipc.TypeClearCache,
	"stats":      ipc.TypeResetStats,
	"connection": ipc.TypeResetConnection,
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "reset <cache|stats|connection>",
		Short:     "Clear the cache, zero the counters or reconnect to the core",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"cache", "stats", "connection"},
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, ok := resetTypes[args[0]]
			if !ok {
				return fmt.Errorf("unknown reset target %q (want cache, stats or connection)", args[0])
			}

			client, err := connectExistingFn()
			if err != nil {
				return err
			}
			defer client.Close()

			if _, err := roundTrip(client, &ipc.Request{Type: typ}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
			return nil
		},
	}
}

// decodeReport converts the decoded stats message back into its typed form.
func decodeReport(msg any) (dispatch.Report, error) {
	var r dispatch.Report
	b, err := json.Marshal(msg)
	if err != nil {
		return r, fmt.Errorf("decoding stats: %w", err)
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("decoding stats: %w", err)
	}
	return r, nil
}

func renderReport(w io.Writer, r dispatch.Report) error {
	c := r.Connection
	last := "never"
	if c.LastSuccessfulConnection != nil {
		last = (time.Duration(*c.LastSuccessfulConnection * float64(time.Second))).Round(time.Second).String() + " ago"
	}
	sections := []string{
		renderTable("Connection", []string{"Field", "Value"}, [][]string{
			{"endpoint", c.Endpoint},
			{"connected", strconv.FormatBool(c.Connected)},
			{"last success", last},
			{"failures", strconv.Itoa(c.ConnectionFailures)},
			{"health check interval", seconds(c.HealthCheckIntervalSecs)},
			{"active requests", fmt.Sprintf("%d / %d", c.ActiveRequests, c.MaxConcurrentRequests)},
			{"monitoring", strconv.FormatBool(c.PerformanceMonitoringEnabled)},
		}),
		renderTable("Performance", []string{"Field", "Value"}, [][]string{
			{"requests", strconv.FormatUint(r.Performance.RequestCount, 10)},
			{"errors", strconv.FormatUint(r.Performance.ErrorCount, 10)},
			{"error rate", percent(r.Performance.ErrorRate)},
			{"avg / min / max", fmt.Sprintf("%dms / %dms / %dms", r.Performance.AverageDurationMs, r.Performance.MinDurationMs, r.Performance.MaxDurationMs)},
			{"uptime", (time.Duration(r.Performance.UptimeSeconds) * time.Second).String()},
		}, 1),
		renderTable("Cache", []string{"Field", "Value"}, [][]string{
			{"entries", fmt.Sprintf("%d / %d", r.Cache.Entries, r.Cache.MaxEntries)},
			{"hits", strconv.FormatUint(r.Cache.Hits, 10)},
			{"misses", strconv.FormatUint(r.Cache.Misses, 10)},
			{"hit rate", percent(r.Cache.HitRate)},
			{"ttl", seconds(r.Cache.TTLSeconds)},
		}, 1),
	}
	if p := r.Process; p != nil {
		sections = append(sections, renderTable("Process", []string{"Field", "Value"}, [][]string{
			{"pid", strconv.Itoa(p.PID)},
			{"resident", fmt.Sprintf("%.1f MiB", float64(p.ResidentBytes)/(1<<20))},
			{"cpu", fmt.Sprintf("%.2fs", p.CPUSeconds)},
			{"threads", strconv.Itoa(p.Threads)},
			{"open fds", strconv.Itoa(p.OpenFDs)},
		}, 1))
	}
	if len(r.Subscriptions) > 0 {
		rows := make([][]string, 0, len(r.Subscriptions))
		for _, s := range r.Subscriptions {
			rows = append(rows, []string{s.ID, s.Service + "/" + s.Method, s.State, strconv.FormatUint(s.Delivered, 10)})
		}
		sections = append(sections, renderTable("Subscriptions", []string{"ID", "Method", "State", "Delivered"}, rows, 3))
	}

	_, err := fmt.Fprintln(w, strings.Join(sections, "\n"))
	return err
}

func seconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).String()
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}
