package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/gcalkit/internal/calendar"
	"github.com/teemow/gcalkit/internal/ics"
)

const (
	formatJSON = "json"
	formatICS  = "ics"
)

// defaultListWindow is the range listed when --to is not given
const defaultListWindow = 7 * 24 * time.Hour

type listOptions struct {
	calendarID   string
	from         string
	to           string
	singleEvents bool
	orderBy      string
	showDeleted  bool
	format       string
}

type bulkOptions struct {
	inserts string
	updates string
	deletes string
}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read and modify calendar events",
		Long: `Read and modify calendar events.

Create, update, delete and bulk commands read their payload from JSON files
("-" reads stdin) and send all items in a single batch request. The batch
result is printed as JSON keyed by event ID, or by external ID for new
events. The command fails if any item failed.`,
	}

	cmd.AddCommand(newEventsGetCmd())
	cmd.AddCommand(newEventsListCmd())
	cmd.AddCommand(newEventsWriteCmd("create", "Create events from a JSON array of {calendarId, resource}", func(ctx context.Context, svc *calendar.Service, events []calendar.CalendarEvent) (*calendar.BatchResponse, error) {
		return svc.CreateEvents(ctx, events)
	}))
	cmd.AddCommand(newEventsWriteCmd("update", "Replace events from a JSON array of {calendarId, resource}; every resource needs an id", func(ctx context.Context, svc *calendar.Service, events []calendar.CalendarEvent) (*calendar.BatchResponse, error) {
		return svc.UpdateEvents(ctx, events)
	}))
	cmd.AddCommand(newEventsDeleteCmd())
	cmd.AddCommand(newEventsBulkCmd())

	return cmd
}

func newEventsGetCmd() *cobra.Command {
	var calendarID string

	cmd := &cobra.Command{
		Use:   "get EVENT_ID",
		Short: "Print a single event as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *calendar.Service, _ calendar.Config) error {
				return runGet(ctx, svc, cmd.OutOrStdout(), calendar.GetRequest{CalendarID: calendarID, EventID: args[0]})
			})
		},
	}

	cmd.Flags().StringVar(&calendarID, "calendar", calendar.PrimaryCalendar, "Calendar ID")
	return cmd
}

func newEventsListCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the events of a time range",
		Long: `List the events of a calendar between --from and --to (RFC3339).
Without --from the range starts now; without --to it spans seven days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.rangeRequest(time.Now(), cmd.Flags().Changed("show-deleted"))
			if err != nil {
				return err
			}
			if opts.format != formatJSON && opts.format != formatICS {
				return fmt.Errorf("unsupported format %q (supported: json, ics)", opts.format)
			}
			return withService(cmd, func(ctx context.Context, svc *calendar.Service, _ calendar.Config) error {
				return runList(ctx, svc, cmd.OutOrStdout(), req, opts.format)
			})
		},
	}

	cmd.Flags().StringVar(&opts.calendarID, "calendar", calendar.PrimaryCalendar, "Calendar ID")
	cmd.Flags().StringVar(&opts.from, "from", "", "Start of the range (RFC3339, default: now)")
	cmd.Flags().StringVar(&opts.to, "to", "", "End of the range (RFC3339, default: seven days after --from)")
	cmd.Flags().BoolVar(&opts.singleEvents, "single-events", true, "Expand recurring events into single instances")
	cmd.Flags().StringVar(&opts.orderBy, "order-by", "", "Sort order: startTime (requires --single-events) or updated")
	cmd.Flags().BoolVar(&opts.showDeleted, "show-deleted", false, "Include cancelled events")
	cmd.Flags().StringVar(&opts.format, "format", formatJSON, "Output format: json or ics")
	return cmd
}

// rangeRequest resolves the list flags relative to now. ShowDeleted is only
// sent when the flag was given.
func (o listOptions) rangeRequest(now time.Time, showDeletedSet bool) (calendar.RangeRequest, error) {
	start := now
	if o.from != "" {
		t, err := time.Parse(time.RFC3339, o.from)
		if err != nil {
			return calendar.RangeRequest{}, fmt.Errorf("invalid --from: %w", err)
		}
		start = t
	}

	end := start.Add(defaultListWindow)
	if o.to != "" {
		t, err := time.Parse(time.RFC3339, o.to)
		if err != nil {
			return calendar.RangeRequest{}, fmt.Errorf("invalid --to: %w", err)
		}
		end = t
	}
	if end.Before(start) {
		return calendar.RangeRequest{}, fmt.Errorf("--to (%s) is before --from (%s)", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	req := calendar.RangeRequest{
		CalendarID:   o.calendarID,
		SingleEvents: o.singleEvents,
		OrderBy:      o.orderBy,
		Start:        start,
		End:          end,
	}
	if showDeletedSet {
		showDeleted := o.showDeleted
		req.ShowDeleted = &showDeleted
	}
	return req, nil
}

func newEventsWriteCmd(use, short string, run func(ctx context.Context, svc *calendar.Service, events []calendar.CalendarEvent) (*calendar.BatchResponse, error)) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var events []calendar.CalendarEvent
			if err := readJSONFile(cmd.InOrStdin(), file, &events); err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *calendar.Service, _ calendar.Config) error {
				resp, err := run(ctx, svc, events)
				if err != nil {
					return err
				}
				return writeBatchResponse(cmd.OutOrStdout(), resp)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the events (\"-\" for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newEventsDeleteCmd() *cobra.Command {
	var (
		calendarID string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "delete [EVENT_ID...]",
		Short: "Delete events by ID, or from a JSON array of {calendarId, eventId}",
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := deleteRequests(cmd.InOrStdin(), calendarID, file, args)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *calendar.Service, _ calendar.Config) error {
				resp, err := svc.DeleteEvents(ctx, requests)
				if err != nil {
					return err
				}
				return writeBatchResponse(cmd.OutOrStdout(), resp)
			})
		},
	}

	cmd.Flags().StringVar(&calendarID, "calendar", calendar.PrimaryCalendar, "Calendar ID of the events given as arguments")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with delete requests (\"-\" for stdin)")
	return cmd
}

func newEventsBulkCmd() *cobra.Command {
	var opts bulkOptions

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Create, update and delete events in a single batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inserts, updates, deletes, err := opts.load(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *calendar.Service, _ calendar.Config) error {
				resp, err := svc.EventBulkRequests(ctx, inserts, updates, deletes)
				if err != nil {
					return err
				}
				return writeBatchResponse(cmd.OutOrStdout(), resp)
			})
		},
	}

	cmd.Flags().StringVar(&opts.inserts, "inserts", "", "JSON file with events to create")
	cmd.Flags().StringVar(&opts.updates, "updates", "", "JSON file with events to replace")
	cmd.Flags().StringVar(&opts.deletes, "deletes", "", "JSON file with delete requests")
	return cmd
}

func (o bulkOptions) load(stdin io.Reader) (inserts, updates []calendar.CalendarEvent, deletes []calendar.DeleteRequest, err error) {
	if o.inserts == "" && o.updates == "" && o.deletes == "" {
		return nil, nil, nil, errors.New("at least one of --inserts, --updates or --deletes is required")
	}
	stdinFlags := 0
	for _, f := range []string{o.inserts, o.updates, o.deletes} {
		if f == "-" {
			stdinFlags++
		}
	}
	if stdinFlags > 1 {
		return nil, nil, nil, errors.New("only one of --inserts, --updates or --deletes can read stdin (\"-\")")
	}
	if o.inserts != "" {
		if err := readJSONFile(stdin, o.inserts, &inserts); err != nil {
			return nil, nil, nil, err
		}
	}
	if o.updates != "" {
		if err := readJSONFile(stdin, o.updates, &updates); err != nil {
			return nil, nil, nil, err
		}
	}
	if o.deletes != "" {
		if err := readJSONFile(stdin, o.deletes, &deletes); err != nil {
			return nil, nil, nil, err
		}
	}
	return inserts, updates, deletes, nil
}

func deleteRequests(stdin io.Reader, calendarID, file string, eventIDs []string) ([]calendar.DeleteRequest, error) {
	switch {
	case file != "" && len(eventIDs) > 0:
		return nil, errors.New("pass either event IDs or --file, not both")
	case file != "":
		var requests []calendar.DeleteRequest
		if err := readJSONFile(stdin, file, &requests); err != nil {
			return nil, err
		}
		return requests, nil
	case len(eventIDs) == 0:
		return nil, errors.New("no events to delete")
	}
	return calendar.DeleteRequestsFor(calendarID, eventIDs...), nil
}

func runGet(ctx context.Context, svc *calendar.Service, w io.Writer, req calendar.GetRequest) error {
	event, err := svc.GetEvent(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(w, event)
}

func runList(ctx context.Context, svc *calendar.Service, w io.Writer, req calendar.RangeRequest, format string) error {
	events, err := svc.GetEventsInRange(ctx, req)
	if err != nil {
		return err
	}
	if format == formatICS {
		return ics.Encode(w, events.Items)
	}
	return writeJSON(w, events)
}

// readJSONFile decodes path into v. "-" reads r instead.
func readJSONFile(r io.Reader, path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeBatchResponse prints resp and reports failed items as an error
func writeBatchResponse(w io.Writer, resp *calendar.BatchResponse) error {
	if err := writeJSON(w, resp); err != nil {
		return err
	}
	if failed := resp.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d batch items failed: %s", len(failed), len(resp.Items), strings.Join(failed, ", "))
	}
	return nil
}
