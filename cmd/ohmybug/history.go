package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/history"
)

// runHistory lists recorded runs, optionally pruning old ones first or
// printing the issues of one run.
func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("history-db", "", "Path to the history database (default ~/.ohmybug/history.db)")
	limit := fs.Int("limit", 20, "Maximum number of runs to list (0 = all)")
	all := fs.Bool("all", false, "List runs of every project")
	prune := fs.Duration("prune", 0, "Delete runs older than this before listing")
	issuesOf := fs.String("issues", "", "Print the issues recorded with this run ID")
	asJSON := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	cfg := history.DefaultConfig()
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	store, err := history.Open(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	if *issuesOf != "" {
		issues, err := store.LoadIssues(ctx, *issuesOf)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return printIssues(stdout, issues, *asJSON)
	}

	if *prune > 0 {
		n, err := store.Prune(ctx, *prune)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Pruned %d runs\n", n)
	}

	project := ""
	if !*all {
		path := "."
		if fs.NArg() > 0 {
			path = fs.Arg(0)
		}
		project, err = core.ResolveProjectPath(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	runs, err := store.ListRuns(ctx, project, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printRuns(stdout, runs, *asJSON)
}

func printRuns(w io.Writer, runs []history.Run, asJSON bool) int {
	if asJSON {
		if runs == nil {
			runs = []history.Run{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runs); err != nil {
			return 1
		}
		return 0
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return 0
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTARTED\tISSUES\tCRIT\tHIGH\tFIXED\tBUILD\tBRANCH")
	for _, r := range runs {
		build := "-"
		if r.BuildSucceeded != nil {
			build = "fail"
			if *r.BuildSucceeded {
				build = "ok"
			}
		}
		issues := fmt.Sprintf("%d", r.After.Total)
		if r.Kind == history.KindFix {
			issues = fmt.Sprintf("%d -> %d", r.Before.Total, r.After.Total)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, r.Kind, r.StartedAt.Local().Format(time.DateTime), issues,
			r.After.Critical, r.After.High, r.FixedIssues, build, r.Branch)
	}
	tw.Flush()
	return 0
}

func printIssues(w io.Writer, issues []core.Issue, asJSON bool) int {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(issues); err != nil {
			return 1
		}
		return 0
	}
	for _, i := range issues {
		fmt.Fprintf(w, "%s:%d  [%s] %s  %s (%s)\n",
			i.FilePath, i.LineOrZero(), i.Severity, i.Rule, i.Message, i.Scanner)
	}
	return 0
}
