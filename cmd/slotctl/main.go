package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"medslots/internal/api"
	"medslots/internal/app"
	"medslots/internal/availability"
	"medslots/internal/config"
	"medslots/internal/export"
	"medslots/internal/model"
	"medslots/internal/slots"
	"medslots/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "slotctl",
		Short:        "Operator tool for the clinic slot engine",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("MEDSLOTS_CONFIG_PATH"), "Path to config.yaml")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(appointmentsCmd())
	rootCmd.AddCommand(sourcesCmd())
	return rootCmd
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return zerolog.New(io.Discard)
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Logger()
}

func build(cmd *cobra.Command) (*app.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cmd)
	return app.Build(cmd.Context(), cfg, &logger, app.Options{})
}

func addRequestFlags(cmd *cobra.Command, withRange bool) {
	cmd.Flags().String("clinic", "", "Clinic ID")
	cmd.Flags().String("specialist", "", "Specialist ID")
	cmd.Flags().String("service", "", "Service option ID")
	_ = cmd.MarkFlagRequired("clinic")
	_ = cmd.MarkFlagRequired("specialist")
	_ = cmd.MarkFlagRequired("service")
	if withRange {
		cmd.Flags().String("from", "", "Window start, ISO-8601")
		cmd.Flags().String("to", "", "Window end, ISO-8601")
		_ = cmd.MarkFlagRequired("from")
		_ = cmd.MarkFlagRequired("to")
	}
}

func requestFromFlags(cmd *cobra.Command) (slots.Request, error) {
	clinic, _ := cmd.Flags().GetString("clinic")
	specialist, _ := cmd.Flags().GetString("specialist")
	service, _ := cmd.Flags().GetString("service")
	req := slots.Request{ClinicID: clinic, SpecialistID: specialist, ServiceOptionID: service}

	if cmd.Flags().Lookup("from") == nil {
		return req, nil
	}
	fromRaw, _ := cmd.Flags().GetString("from")
	toRaw, _ := cmd.Flags().GetString("to")

	var err error
	if req.From, err = availability.ParseTimestamp(fromRaw); err != nil {
		return req, err
	}
	if req.To, err = availability.ParseTimestamp(toRaw); err != nil {
		return req, err
	}
	return req, availability.ValidateRange(req.From, req.To, api.MaxAvailabilityDaysRange)
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate slots for a window and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}
			res, err := a.Service.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "generated=%d inserted=%d skipped=%d\n", res.Generated, res.Inserted, res.Skipped)

			out, err := a.Service.GetAvailability(cmd.Context(), req.ClinicID, req.SpecialistID, req.ServiceOptionID, req.From, req.To)
			if err != nil {
				return err
			}
			return printSlots(cmd.OutOrStdout(), out)
		},
	}
	addRequestFlags(cmd, true)
	return cmd
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query availability from a slot source",
		Long: "Query availability from a slot source. The engine collection lives in process memory, " +
			"so the engine source is generated for the window before it is queried.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}
			source, _ := cmd.Flags().GetString("source")
			if source == availability.EngineSource {
				if _, err := a.Service.Generate(cmd.Context(), req); err != nil {
					return err
				}
			}

			out, err := a.Service.Query(cmd.Context(), source, store.Query{
				ClinicID:        req.ClinicID,
				SpecialistID:    req.SpecialistID,
				ServiceOptionID: req.ServiceOptionID,
				From:            req.From,
				To:              req.To,
			})
			if err != nil {
				return err
			}
			return printSlots(cmd.OutOrStdout(), out)
		},
	}
	addRequestFlags(cmd, true)
	cmd.Flags().String("source", availability.EngineSource, "Slot source: engine or directory")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Generate slots for a window and write them to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}
			if _, err := a.Service.Generate(cmd.Context(), req); err != nil {
				return err
			}
			out, err := a.Service.GetAvailability(cmd.Context(), req.ClinicID, req.SpecialistID, req.ServiceOptionID, req.From, req.To)
			if err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("out")
			if path == "" {
				path = export.Filename(time.Now())
			}

			book, err := export.WriteSlots(out, a.Location)
			if err != nil {
				return err
			}
			defer book.Close()
			if err := book.SaveAs(path); err != nil {
				return fmt.Errorf("save %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d slots to %s\n", len(out), path)
			return nil
		},
	}
	addRequestFlags(cmd, true)
	cmd.Flags().StringP("out", "o", "", "Output file (default availability_<timestamp>.xlsx)")
	return cmd
}

func appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Manage booked appointments (sqlite storage)",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Record an appointment that blocks generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.DB == nil {
				return fmt.Errorf("appointments are only persisted with sqlite storage")
			}

			specialist, _ := cmd.Flags().GetString("specialist")
			startRaw, _ := cmd.Flags().GetString("start")
			endRaw, _ := cmd.Flags().GetString("end")
			status, _ := cmd.Flags().GetString("status")

			start, err := availability.ParseTimestamp(startRaw)
			if err != nil {
				return err
			}
			end, err := availability.ParseTimestamp(endRaw)
			if err != nil {
				return err
			}

			appt := &model.ExistingAppointment{SpecialistID: specialist, Start: start, End: end, Status: status}
			if err := a.Appointments.InsertAppointment(cmd.Context(), appt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "appointment %d recorded\n", appt.ID)
			return nil
		},
	}
	addCmd.Flags().String("specialist", "", "Specialist ID")
	addCmd.Flags().String("start", "", "Start, ISO-8601")
	addCmd.Flags().String("end", "", "End, ISO-8601")
	addCmd.Flags().String("status", "", "Status label (display only)")
	_ = addCmd.MarkFlagRequired("specialist")
	_ = addCmd.MarkFlagRequired("start")
	_ = addCmd.MarkFlagRequired("end")
	cmd.AddCommand(addCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments for a specialist",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			specialist, _ := cmd.Flags().GetString("specialist")
			list, err := a.Appointments.ListAppointments(cmd.Context(), specialist)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
	listCmd.Flags().String("specialist", "", "Specialist ID")
	_ = listCmd.MarkFlagRequired("specialist")
	cmd.AddCommand(listCmd)

	return cmd
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List slot sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, name := range a.Service.SourceNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func printSlots(w io.Writer, list []model.AvailabilitySlot) error {
	if list == nil {
		list = []model.AvailabilitySlot{}
	}
	return printJSON(w, list)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
