package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/client"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globals struct {
	baseURL        string
	token          string
	idempotencyKey string
}

func (g *globals) client() (*client.Client, error) {
	if g.token == "" {
		return nil, fmt.Errorf("--token or SPMS_TOKEN is required")
	}
	return client.New(g.baseURL, g.token), nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "spmsctl",
		Short:         "Command line client for the document workflow API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", envOr("SPMS_BASE_URL", "http://localhost:8085"), "workflow service URL (SPMS_BASE_URL)")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("SPMS_TOKEN"), "bearer token (SPMS_TOKEN)")
	root.PersistentFlags().StringVar(&g.idempotencyKey, "idempotency-key", "", "Idempotency-Key sent with mutations")

	for _, action := range []string{"advance", "recall", "send-back"} {
		root.AddCommand(newTransitionCmd(g, action))
	}
	root.AddCommand(
		newShowCmd(g),
		newEventsCmd(g),
		newCreateCmd(g),
		newEndorsementCmd(g),
		newProvideCmd(g),
		newInvolvementCmd(g),
		newPendingCmd(g),
		newSpawnCmd(g),
	)
	return root
}

func newTransitionCmd(g *globals, action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <document_id> <stage>",
		Short: "Apply " + action + " at stage 1 (lead), 2 (area) or 3 (directorate)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("stage must be 1, 2 or 3: %w", err)
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			out, err := c.Transition(cmd.Context(), args[0], action, stage, g.idempotencyKey)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <document_id>",
		Short: "Print a document and its gate state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out, err := c.Document(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newEventsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "events <document_id>",
		Short: "Print the governance trail of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out, err := c.Events(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newCreateCmd(g *globals) *cobra.Command {
	var annualReport string
	cmd := &cobra.Command{
		Use:   "create <project_id> <kind>",
		Short: "Create a document (conceptplan, projectplan, progressreport, studentreport, projectclosure)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out, err := c.CreateDocument(cmd.Context(), args[0], args[1], annualReport, g.idempotencyKey)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&annualReport, "annual-report", "", "annual report id, required for report kinds")
	return cmd
}

func newEndorsementCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "endorsement <document_id>",
		Short: "Print the endorsement state of a project plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out, err := c.Endorsement(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newProvideCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "provide <document_id> <biometrician|animal_ethics|herbarium>",
		Short: "Provide a specialist endorsement on a project plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out, err := c.ProvideEndorsement(cmd.Context(), args[0], args[1], g.idempotencyKey)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newInvolvementCmd(g *globals) *cobra.Command {
	var animals, plants bool
	cmd := &cobra.Command{
		Use:   "involvement <document_id>",
		Short: "Declare whether a project plan involves animals or plants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out, err := c.SetInvolvement(cmd.Context(), args[0], animals, plants)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&animals, "animals", false, "project involves animals")
	cmd.Flags().BoolVar(&plants, "plants", false, "project involves plants")
	return cmd
}

func newPendingCmd(g *globals) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List documents awaiting action, grouped by role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out, err := c.Pending(cmd.Context(), user)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "another user's id (superuser only)")
	return cmd
}

func newSpawnCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "spawn <annual_report_id>",
		Short: "Create the progress and student reports of a reporting cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out, err := c.Spawn(cmd.Context(), args[0], g.idempotencyKey)
			if out == nil {
				return err
			}
			if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
				return perr
			}
			if err != nil {
				return fmt.Errorf("%d project(s) failed: %w", len(out.Result.Failed), err)
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
