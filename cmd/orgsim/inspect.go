package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/openspawn/openspawn-sub002/internal/persistence/indexdb"
)

type inspectOptions struct {
	*rootOptions

	RunDir string
	Agent  string
	Limit  int
}

func newInspectCommand(root *rootOptions) *cobra.Command {
	opts := &inspectOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a run from its sqlite index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.RunDir, "run", "", "run directory written by `orgsim run` (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Agent, "agent", "", "also list recent audit events for this agent id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "max audit rows for --agent")
	return cmd
}

func runInspect(ctx context.Context, opts *inspectOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := indexdb.OpenReader(indexPath(opts.RunDir))
	if err != nil {
		return &exitError{code: exitUsage, err: fmt.Errorf("open index: %w", err)}
	}
	defer r.Close()

	meta, err := r.Meta(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s=%s\n", k, meta[k])
	}

	tr, err := r.Ticks(ctx)
	if err != nil {
		return err
	}
	snaps, err := r.SnapshotCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "ticks=%d first=%d last=%d snapshots=%d\n", tr.Count, tr.First, tr.Last, snaps)

	counts, err := r.EventCounts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "events:")
	for _, c := range counts {
		fmt.Fprintf(w, "  %-22s %d\n", c.Type, c.Count)
	}

	if opts.Agent == "" {
		return nil
	}
	rows, err := r.AgentAudits(ctx, opts.Agent, opts.Limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "agent %s:\n", opts.Agent)
	for _, a := range rows {
		fmt.Fprintf(w, "  tick=%d %-8s %-20s %s\n", a.Tick, a.Severity, a.Type, a.Message)
	}
	return nil
}
