// Command doorlog is the field agent CLI. Every command works offline;
// writes land in the local queue and drain to the server when it is
// reachable.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rldls/doorlog/internal/agent"
	"github.com/rldls/doorlog/internal/config"
	"github.com/rldls/doorlog/internal/logging"
	"github.com/rldls/doorlog/internal/models"
)

func main() {
	logging.Init(os.Stderr, logging.LevelWarn)

	root := &cobra.Command{
		Use:           "doorlog",
		Short:         "Log door-to-door visits, online or not",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		logCmd(),
		deleteCmd(),
		startDayCmd(),
		checkinCmd(),
		syncCmd(),
		statusCmd(),
		historyCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openAgent loads config and wires the engine for one command run.
func openAgent() (*agent.Agent, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	return agent.New(cfg)
}

func logCmd() *cobra.Command {
	var street, door string

	cmd := &cobra.Command{
		Use:   "log <not-home|opened|estimate>",
		Short: "Record one visit outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := models.Status(args[0])
			if !status.IsValid() {
				return fmt.Errorf("unknown status %q", args[0])
			}

			a, err := openAgent()
			if err != nil {
				return err
			}
			defer a.Close()

			// Flags fall back to the last position, letting the common
			// next-door-same-street case be just "doorlog log opened".
			lastStreet, lastDoor := a.Position()
			if street == "" {
				street = lastStreet
			}
			if door == "" {
				door = lastDoor
			}
			if street == "" {
				return fmt.Errorf("no street known yet, pass --street")
			}

			res, err := a.Record(cmd.Context(), street, door, status)
			if err != nil {
				return err
			}

			where := fmt.Sprintf("%s %s", res.Event.DoorNumber, res.Event.StreetName)
			if res.Queued {
				fmt.Printf("queued %s at %s (%s)\n", status.Label(), where, res.Event.Timestamp)
			} else {
				fmt.Printf("logged %s at %s (%s)\n", status.Label(), where, res.Event.Timestamp)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&street, "street", "s", "", "street name")
	cmd.Flags().StringVarP(&door, "door", "d", "", "door number")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <timestamp>",
		Short: "Remove a logged visit by its timestamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAgent()
			if err != nil {
				return err
			}
			defer a.Close()

			cancelled, err := a.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cancelled {
				fmt.Println("removed before it ever left the device")
			} else {
				fmt.Println("deletion queued for the server")
			}
			return nil
		},
	}
}

func startDayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-day",
		Short: "Begin today at yesterday's last position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAgent()
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.StartDay(cmd.Context())
			if err != nil {
				return err
			}
			if e == nil {
				fmt.Println("day started with no carry-over position")
				return nil
			}
			fmt.Printf("day started at %s %s\n", e.DoorNumber, e.StreetName)
			return nil
		},
	}
}

func checkinCmd() *cobra.Command {
	var day models.DayContext

	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Set today's context, stamped onto every visit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAgent()
			if err != nil {
				return err
			}
			defer a.Close()

			day.DayOfWeek = time.Now().Weekday().String()
			if err := a.CheckIn(day); err != nil {
				return err
			}
			fmt.Println("checked in")
			return nil
		},
	}

	cmd.Flags().StringVar(&day.Groomed, "groomed", "", "grooming state")
	cmd.Flags().StringVar(&day.Mood, "mood", "", "mood")
	cmd.Flags().StringVar(&day.Jacket, "jacket", "", "jacket worn")
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Drain the queue now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAgent()
			if err != nil {
				return err
			}
			defer a.Close()

			res, ran := a.Drain(cmd.Context())
			if !ran {
				fmt.Println("a drain cycle is already running")
				return nil
			}
			fmt.Printf("confirmed %d, dropped %d, remaining %d\n",
				res.Confirmed, res.Dropped, res.Remaining)
			if res.Aborted {
				fmt.Println("stopped early: server unreachable, entries kept")
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAgent()
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.Status()
			street, door := a.Position()

			if a.Ping(cmd.Context()) == nil {
				fmt.Println("server:         reachable")
			} else {
				fmt.Println("server:         unreachable")
			}
			fmt.Printf("queued entries: %d\n", st.QueueDepth)
			if street != "" {
				fmt.Printf("last position:  %s %s\n", door, street)
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the day's visits, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAgent()
			if err != nil {
				return err
			}
			defer a.Close()

			if date == "" {
				date = time.Now().Format("2006-01-02")
			}
			events, err := a.History(date)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("no visits logged for", date)
				return nil
			}
			for _, e := range events {
				marker := " "
				if e.IsFirstEntry {
					marker = "*"
				}
				fmt.Printf("%s %-21s %-9s %s %s\n",
					marker, e.Timestamp, e.Status, e.DoorNumber, e.StreetName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to list (YYYY-MM-DD, default today)")
	return cmd
}
