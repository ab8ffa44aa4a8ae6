package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"plankton/internal/config"
	"plankton/internal/pipeline"
	"plankton/internal/storage"
	"plankton/internal/surveys"
	"plankton/internal/worms"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "dwc:build":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		abundance := fs.String("abundance", "", "wide abundance matrix xlsx")
		samples := fs.String("samples", "", "sample index xlsx")
		out := fs.String("out", cfg.OutputDir, "output directory")
		format := fs.String("format", "csv", "csv|xlsx")
		match := fs.Bool("match", false, "enrich names via the taxonomic match service")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*abundance) == "" || strings.TrimSpace(*samples) == "" {
			must(fmt.Errorf("--abundance and --samples are required"))
		}

		var matcher *worms.Matcher
		if *match {
			matcher = worms.NewMatcher(worms.NewClient(cfg), db)
		}
		svc := pipeline.NewBuildService(db, cfg, matcher)
		res, err := svc.Build(context.Background(), *abundance, *samples, *out, *format)
		must(err)
		fmt.Printf("dwc build done events=%d occurrences=%d measurements=%d uniqueTaxa=%d matched=%d unmatched=%d out=%s\n",
			res.Events, res.Occurrences, res.Measurements, res.UniqueTaxa, res.Matched, res.Unmatched, res.OutDir)
	case "worms:warm":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		abundance := fs.String("abundance", "", "wide abundance matrix xlsx")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*abundance) == "" {
			must(fmt.Errorf("--abundance is required"))
		}
		matrix, err := pipeline.ReadAbundanceMatrix(*abundance)
		must(err)
		names := pipeline.DistinctNames(pipeline.Reshape(matrix))
		matcher := worms.NewMatcher(worms.NewClient(cfg), db)
		matched := 0
		for _, m := range matcher.MatchAll(context.Background(), names) {
			if m.Record != nil {
				matched++
			}
		}
		fmt.Printf("worms cache warmed names=%d matched=%d\n", len(names), matched)
	case "surveys:fetch":
		svc := surveys.NewFetchService(db, cfg)
		count, err := svc.Fetch(context.Background())
		must(err)
		fmt.Printf("surveys fetch done submissions=%d\n", count)
	case "surveys:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output csv path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		subs, err := db.ListSubmissions()
		must(err)
		if len(subs) == 0 {
			must(fmt.Errorf("no stored submissions; run surveys:fetch first"))
		}
		must(surveys.WriteSubmissionsCSV(subs, *out))
		fmt.Printf("exported %d submissions to %s\n", len(subs), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: plankton <command>")
	fmt.Println("commands:")
	fmt.Println("  dwc:build --abundance=matrix.xlsx --samples=index.xlsx [--out=DIR] [--format=csv|xlsx] [--match]")
	fmt.Println("  worms:warm --abundance=matrix.xlsx")
	fmt.Println("  surveys:fetch")
	fmt.Println("  surveys:export --out=submissions.csv")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
