package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Billy-Davies-2/warband-roster/internal/attendance"
	"github.com/Billy-Davies-2/warband-roster/internal/form"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
	"github.com/Billy-Davies-2/warband-roster/internal/roster"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "warband-roster",
		Short:        "Warband roster manager",
		Long:         "Keeps a guild's players, their units and their war groups in one document, served over HTTP and gRPC.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newFormCmd(), newAttendanceCmd(), newValidateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func readDocument(path string) (models.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := roster.DecodeDocument(raw)
	if err != nil {
		return models.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func newFormCmd() *cobra.Command {
	var (
		file    string
		player  string
		version int
	)
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Print the unit form for one player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := readDocument(file)
			if err != nil {
				return err
			}
			p, ok := roster.FindPlayerByName(doc, player)
			if !ok {
				return fmt.Errorf("no player named %q", player)
			}
			text, err := form.Generate(p, doc.UnitConfig, form.Options{Version: version, Prefill: true})
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "roster document (JSON)")
	cmd.Flags().StringVar(&player, "player", "", "player name")
	cmd.Flags().IntVar(&version, "version", 0, "form version (default: latest)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}

func newAttendanceCmd() *cobra.Command {
	var file, signups, out string
	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Apply a signup export to a roster document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := readDocument(file)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(signups)
			if err != nil {
				return fmt.Errorf("read %s: %w", signups, err)
			}
			list, err := attendance.Parse(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", signups, err)
			}

			outcome := attendance.Match(list, doc.Players)
			doc = roster.Reduce(doc, roster.ImportTWAttendance{JSONString: string(raw)})

			accepted, maybe, declined := outcome.Counts()
			fmt.Fprintf(cmd.ErrOrStderr(), "accepted: %d, maybe: %d, declined: %d\n", accepted, maybe, declined)
			for _, e := range outcome.Attendance {
				if e.MatchedPlayerID == "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "unmatched: %s (%s)\n", e.DiscordName, e.Status)
				}
			}

			data, err := roster.EncodeDocument(doc)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "roster document (JSON)")
	cmd.Flags().StringVar(&signups, "signups", "", "signup export (JSON with signUps)")
	cmd.Flags().StringVar(&out, "out", "", "write the updated document here instead of stdout")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("signups")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that a roster document loads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := readDocument(file)
			if err != nil {
				return err
			}
			units := 0
			for _, tier := range doc.UnitConfig.Tiers {
				units += len(tier)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d players, %d groups, %d units, %d attendance entries\n",
				len(doc.Players), len(doc.Groups), units, len(doc.TWAttendance))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "roster document (JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
