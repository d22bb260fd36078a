package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"districtvotes/internal"
	"districtvotes/internal/config"
	"districtvotes/internal/fetch"
	"districtvotes/internal/pipeline"
	"districtvotes/internal/plans"
	"districtvotes/internal/roster"
	"districtvotes/internal/source"
	"districtvotes/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	must(err)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	catalog, err := loadCatalog(cfg)
	must(err)
	names, err := loadRoster(cfg)
	must(err)

	cmd := os.Args[1]
	switch cmd {
	case "sources:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		force := fs.Bool("force", false, "download even when the file exists")
		year := fs.Int("year", 0, "only this election year")
		level := fs.String("level", "", "only this level")
		_ = fs.Parse(os.Args[2:])
		ls, err := parseLevels(*level)
		must(err)
		var sources []plans.Source
		for _, src := range catalog.Sources() {
			if *year != 0 && src.Year != *year {
				continue
			}
			if len(ls) > 0 && src.Level != ls[0] {
				continue
			}
			sources = append(sources, src)
		}
		must(cfg.Require("DATA_DIR", cfg.DataDir))
		results, err := fetch.NewDownloader(cfg, logger).FetchSources(ctx, sources, *force)
		must(err)
		skipped := 0
		for _, r := range results {
			if r.Skipped {
				skipped++
			}
		}
		fmt.Printf("fetch done sources=%d downloaded=%d skipped=%d\n", len(results), len(results)-skipped, skipped)
	case "sources:flags":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		year := fs.Int("year", 0, "election year")
		level := fs.String("level", "", "house|senate|congressional")
		_ = fs.Parse(os.Args[2:])
		if *year == 0 || *level == "" {
			must(fmt.Errorf("--year and --level are required"))
		}
		lvl, err := internal.ParseLevel(*level)
		must(err)

		db, err := openDB(cfg)
		must(err)
		defer db.Close()

		flags, err := db.IncorrectSources(*year, lvl)
		must(err)
		ids := make([]string, 0, len(flags))
		for id := range flags {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("%s: %s\n", id, flags[id])
		}
		fmt.Printf("flagged sources=%d\n", len(ids))
	case "sources:unflag":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "source id, e.g. 2020/congressional/PLANC2308/red206")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}

		db, err := openDB(cfg)
		must(err)
		defer db.Close()

		cleared, err := db.ClearSourceFlag(strings.TrimSpace(*id))
		must(err)
		if !cleared {
			must(fmt.Errorf("source %s is not flagged", *id))
		}
		fmt.Printf("unflagged %s\n", *id)
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "report file")
		inType := fs.String("type", "", "pdf|html|pages (default: from extension)")
		year := fs.Int("year", 0, "election year")
		level := fs.String("level", "", "house|senate|congressional")
		plan := fs.String("plan", "", "district plan id")
		out := fs.String("out", "", "output csv path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *year == 0 || *level == "" || *out == "" {
			must(fmt.Errorf("--input --year --level --out are required"))
		}
		lvl, err := internal.ParseLevel(*level)
		must(err)
		var format source.Format
		if *inType != "" {
			format, err = source.ParseFormat(*inType)
			must(err)
		}
		svc := pipeline.NewProcessingService(nil, cfg, catalog, names, logger)
		doc, err := svc.ExtractFile(ctx, *input, format, *year, lvl, *plan)
		must(err)
		must(pipeline.WriteRecordsCSV(doc.Records, *out))
		fmt.Printf("extract done pages=%d records=%d rejected=%d warnings=%d output=%s\n",
			doc.Stats.Pages, len(doc.Records), doc.Stats.RowsRejected, len(doc.Stats.AlignmentWarnings), *out)
	case "pages:dump":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "pdf or html report")
		out := fs.String("out", "", "output pages json")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *out == "" {
			must(fmt.Errorf("--input and --out are required"))
		}
		pages, err := source.ReadFile(*input)
		must(err)
		must(os.MkdirAll(filepath.Dir(*out), 0o755))
		f, err := os.Create(*out)
		must(err)
		must(source.WritePages(f, pages))
		must(f.Close())
		fmt.Printf("dumped %d pages to %s\n", len(pages), *out)
	case "vtd:aggregate":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "precinct csv or xlsx")
		year := fs.Int("year", 0, "election year")
		level := fs.String("level", "", "house|senate|congressional")
		plan := fs.String("plan", "VTD", "plan label for the output")
		out := fs.String("out", "", "output csv path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *year == 0 || *level == "" || *out == "" {
			must(fmt.Errorf("--input --year --level --out are required"))
		}
		lvl, err := internal.ParseLevel(*level)
		must(err)
		svc := pipeline.NewProcessingService(nil, cfg, catalog, names, logger)
		records, stats, err := svc.AggregateFile(*input, *year, lvl, *plan)
		must(err)
		must(pipeline.WriteRecordsCSV(records, *out))
		fmt.Printf("aggregate done records=%d rejected=%d skipped=%d output=%s\n", len(records), stats.RowsRejected, stats.CellsUnparseable, *out)
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		years := fs.String("years", "", "comma-separated years (default: all)")
		levels := fs.String("levels", "", "comma-separated levels (default: all)")
		_ = fs.Parse(os.Args[2:])
		ys, err := parseYears(*years)
		must(err)
		ls, err := parseLevels(*levels)
		must(err)

		db, err := openDB(cfg)
		must(err)
		defer db.Close()

		svc := pipeline.NewProcessingService(db, cfg, catalog, names, logger)
		res, err := svc.Run(ctx, ys, ls)
		must(err)
		for _, report := range res.Coverage {
			status := "complete"
			if !report.Complete() {
				status = fmt.Sprintf("missing=%d offices_with_gaps=%d", len(report.Missing), len(report.Gaps))
			}
			fmt.Printf("%d %s: %s\n", report.Year, report.Level, status)
		}
		for _, u := range res.Dataset.Unavailable() {
			fmt.Printf("unavailable: %v\n", u)
		}
		fmt.Printf("run done trace=%s outputs=%d\n", res.TraceID, len(res.Outputs))
	case "coverage":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		level := fs.String("level", "", "house|senate|congressional (default: all)")
		_ = fs.Parse(os.Args[2:])
		ls, err := parseLevels(*level)
		must(err)
		if len(ls) == 0 {
			ls = internal.Levels
		}

		db, err := openDB(cfg)
		must(err)
		defer db.Close()

		total := 0
		for _, l := range ls {
			gaps, err := db.ListCoverageGaps(l)
			must(err)
			for _, g := range gaps {
				office := g.Office
				if office == "" {
					office = "(all offices)"
				}
				fmt.Printf("%d %s %s district=%s\n", g.Year, g.Level, office, g.District)
			}
			total += len(gaps)
		}
		fmt.Printf("coverage gaps=%d\n", total)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}

		db, err := openDB(cfg)
		must(err)
		defer db.Close()

		dataset, reports, err := pipeline.StoredDataset(db, catalog)
		must(err)
		if len(reports) == 0 {
			must(fmt.Errorf("no stored records; run the pipeline first"))
		}
		must(pipeline.ExportXLSX(dataset, reports, *out))
		fmt.Printf("exported %d levels to %s\n", len(reports), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

func openDB(cfg config.Config) (*storage.DB, error) {
	if err := cfg.Require("DB_PATH", cfg.DBPath); err != nil {
		return nil, err
	}
	return storage.Open(cfg.DBPath)
}

func loadCatalog(cfg config.Config) (*plans.Catalog, error) {
	if cfg.PlansPath == "" {
		return plans.Default(), nil
	}
	return plans.Load(cfg.PlansPath)
}

func loadRoster(cfg config.Config) (*roster.Roster, error) {
	if cfg.RosterPath == "" {
		return roster.Default(), nil
	}
	return roster.Load(cfg.RosterPath)
}

func parseYears(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		out = append(out, y)
	}
	return out, nil
}

func parseLevels(raw string) ([]internal.Level, error) {
	var out []internal.Level
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		l, err := internal.ParseLevel(part)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func usage() {
	fmt.Println("usage: districtvotes <command>")
	fmt.Println("commands:")
	fmt.Println("  sources:fetch [--force] [--year=2020] [--level=house]")
	fmt.Println("  sources:flags --year=2020 --level=congressional")
	fmt.Println("  sources:unflag --id=2020/congressional/PLANC2308/red206")
	fmt.Println("  extract --input=report.pdf [--type=pdf|html|pages] --year=2020 --level=house [--plan=PLANH2316] --out=./out/x.csv")
	fmt.Println("  pages:dump --input=report.pdf --out=./out/report.json")
	fmt.Println("  vtd:aggregate --input=precincts.csv --year=2020 --level=house [--plan=VTD] --out=./out/x.csv")
	fmt.Println("  run [--years=2018,2020] [--levels=house,senate]")
	fmt.Println("  coverage [--level=house]")
	fmt.Println("  export:xlsx --out=./out/results.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
