// Command-line entry point for fareprobe.
//
// Note about inputs
// -----------------
// A run is driven by a case file with one scenario per record:
//  1. JSONL: {"test_id":"TC01","from_city":"Delhi","to_city":"Mumbai",...}
//  2. CSV:   header-mapped columns with the same field names.
//
// Each scenario resolves both cities to airport codes through the live
// typeahead, submits the search, applies the stop and price filters, and
// validates every surviving offer. Reports land in a local SQLite archive
// and optionally in the shared PostgreSQL/ClickHouse backends and on NATS.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"fareprobe/internal/driver"
	"fareprobe/internal/filter"
	"fareprobe/internal/publish"
	"fareprobe/internal/resolve"
	"fareprobe/internal/runner"
	"fareprobe/internal/scenario"
	"fareprobe/internal/score"
	"fareprobe/internal/storage"
)

type runStats struct {
	Cases   int
	Passed  int
	Failed  int
	Errored int
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "fareprobe - commands:")
	fmt.Fprintln(w, "  run    - execute scenarios against the live search form")
	fmt.Fprintln(w, "  check  - validate scraped offers offline against filter criteria")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fareprobe run -cases cases.jsonl [-output reports.json] [-sqlite fareprobe.db]")
	fmt.Fprintln(w, "                [-remote] [-nats nats://localhost:4222] [-headed] [-stats]")
	fmt.Fprintln(w, "  fareprobe check -offers offers.json -stops \"1 Stop\" -min 6000 -max 7000")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Case files must be JSONL (one JSON object per line) or CSV with a header row.")
	fmt.Fprintln(w, "  - A resolution failure marks the scenario FAIL; only a dead browser or a")
	fmt.Fprintln(w, "    cancelled context aborts the run.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "run":
		runScenarios(os.Args[2:])
	case "check":
		runCheck(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runScenarios(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	casesPath := fs.String("cases", "", "Case file, JSONL or CSV (required)")
	outPath := fs.String("output", "", "Report JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	sqlitePath := fs.String("sqlite", "fareprobe.db", "Local SQLite archive (empty to disable)")
	remote := fs.Bool("remote", false, "Also archive to PostgreSQL and ClickHouse")
	natsURL := fs.String("nats", "", "Publish results to this NATS server (empty to disable)")
	headed := fs.Bool("headed", false, "Run the browser with a visible window")
	showStats := fs.Bool("stats", false, "Print basic counters to stderr")
	threshold := fs.Float64("threshold", 0, "Accept threshold override (0 keeps the default)")
	epsilon := fs.Float64("epsilon", 0, "Tie epsilon override (0 keeps the default)")
	maxAttempts := fs.Int("max-attempts", 0, "Per-resolution attempt ceiling override")
	_ = fs.Parse(args)

	if *casesPath == "" {
		fmt.Fprintln(os.Stderr, "run: -cases is required")
		fs.Usage()
		os.Exit(2)
	}

	cases, err := scenario.Load(*casesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load cases: %v\n", err)
		os.Exit(1)
	}
	if len(cases) == 0 {
		fmt.Fprintln(os.Stderr, "No cases found in input")
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "fareprobe ", log.LstdFlags)
	runID := uuid.NewString()
	logger.Printf("run %s: %d case(s) from %s", runID, len(cases), *casesPath)

	scorer := score.NewScorer()
	if *threshold > 0 {
		scorer.AcceptThreshold = *threshold
	}
	if *epsilon > 0 {
		scorer.TieEpsilon = *epsilon
	}
	cfg := resolve.DefaultConfig()
	if *maxAttempts > 0 {
		cfg.MaxAttempts = *maxAttempts
	}

	ctx := context.Background()

	var local *storage.DB
	if *sqlitePath != "" {
		local, err = storage.Open(*sqlitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open SQLite archive: %v\n", err)
			os.Exit(1)
		}
		defer local.Close()
	}

	var shared *storage.Remote
	if *remote {
		shared, err = storage.OpenRemote(ctx, storage.DefaultConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open remote backends: %v\n", err)
			os.Exit(1)
		}
		defer shared.Close()
		if err := shared.CreateSchemas(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create remote schemas: %v\n", err)
			os.Exit(1)
		}
	}

	var pub *publish.Publisher
	if *natsURL != "" {
		pub, err = publish.Connect(*natsURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect NATS: %v\n", err)
			os.Exit(1)
		}
		defer pub.Close()
	}

	cache := resolve.NewCache()
	run := runner.New(cache, scorer, cfg)
	run.SetLogger(logger)

	opts := driver.DefaultOptions()
	opts.Headless = !*headed

	st := &runStats{}
	reports := make([]scenario.Report, 0, len(cases))

	for _, c := range cases {
		rep, offers, err := executeCase(ctx, run, opts, c)
		if err != nil {
			logger.Printf("case %s: %v", c.TestID, err)
			rep = scenario.Report{TestID: c.TestID, Description: c.Description,
				Status: "ERROR", Reason: err.Error()}
		}
		st.Cases++
		switch rep.Status {
		case "PASS":
			st.Passed++
		case "FAIL":
			st.Failed++
		default:
			st.Errored++
		}
		reports = append(reports, rep)

		archive(ctx, logger, runID, rep, offers, c, local, shared, pub)
	}

	if err := writeReports(*outPath, reports, *pretty); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write reports: %v\n", err)
		os.Exit(1)
	}

	if *showStats {
		fmt.Fprintf(os.Stderr, "cases=%d passed=%d failed=%d errored=%d cache_size=%d\n",
			st.Cases, st.Passed, st.Failed, st.Errored, cache.Len())
	}

	if st.Errored > 0 {
		os.Exit(1)
	}
}

// executeCase gives each scenario its own browser page so that a wedged
// page cannot poison the next case. The resolution cache outlives pages.
func executeCase(ctx context.Context, run *runner.Runner, opts driver.Options, c scenario.Case) (scenario.Report, []filter.Offer, error) {
	page, err := driver.NewPage(ctx, opts)
	if err != nil {
		return scenario.Report{}, nil, fmt.Errorf("start browser: %w", err)
	}
	defer page.Close()

	caseCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	return run.Run(caseCtx, page, c)
}

func archive(ctx context.Context, logger *log.Logger, runID string, rep scenario.Report,
	offers []filter.Offer, c scenario.Case, local *storage.DB, shared *storage.Remote, pub *publish.Publisher) {

	if local != nil {
		if _, err := local.InsertReport(runID, rep); err != nil {
			logger.Printf("case %s: sqlite archive: %v", rep.TestID, err)
		}
	}

	if shared != nil {
		passed := passedFlags(offers, rep, c)
		if _, err := shared.PG.InsertReport(ctx, runID, rep, offers, passed); err != nil {
			logger.Printf("case %s: postgres archive: %v", rep.TestID, err)
		}
		if err := shared.CH.InsertObservations(ctx, runID, rep.TestID, c.DepartureDate, offers, passed); err != nil {
			logger.Printf("case %s: clickhouse archive: %v", rep.TestID, err)
		}
	}

	if pub != nil {
		if err := pub.Publish(runID, rep); err != nil {
			logger.Printf("case %s: publish: %v", rep.TestID, err)
		}
	}
}

// passedFlags re-derives the per-offer verdicts for the archive backends.
func passedFlags(offers []filter.Offer, rep scenario.Report, c scenario.Case) []bool {
	cat, err := filter.ParseStopCategory(c.StopsFilter)
	if err != nil {
		return make([]bool, len(offers))
	}
	crit := filter.Criteria{
		Stops:           cat,
		PriceMin:        c.PriceMin,
		PriceMax:        c.PriceMax,
		OriginCode:      rep.Origin.AirportCode,
		DestinationCode: rep.Destination.AirportCode,
	}
	out := make([]bool, len(offers))
	for i, o := range offers {
		out[i] = len(filter.Validate([]filter.Offer{o}, crit).Pass) == 1
	}
	return out
}

func writeReports(path string, reports []scenario.Report, pretty bool) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return encodeJSON(w, reports, pretty)
}

func encodeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	offersPath := fs.String("offers", "", "Offers JSON file (required, array of offer objects)")
	stops := fs.String("stops", "", "Stops filter, e.g. \"Non Stop\", \"1 Stop\", \"2+ Stop\" (required)")
	min := fs.Float64("min", 0, "Minimum price, inclusive")
	max := fs.Float64("max", 0, "Maximum price, inclusive (required)")
	origin := fs.String("origin", "", "Expected origin airport code (optional)")
	dest := fs.String("dest", "", "Expected destination airport code (optional)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	_ = fs.Parse(args)

	if *offersPath == "" || *stops == "" || *max <= 0 {
		fmt.Fprintln(os.Stderr, "check: -offers, -stops and -max are required")
		fs.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*offersPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read offers: %v\n", err)
		os.Exit(1)
	}

	var offers []filter.Offer
	if err := json.Unmarshal(data, &offers); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse offers: %v\n", err)
		os.Exit(1)
	}

	cat, err := filter.ParseStopCategory(*stops)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid stops filter: %v\n", err)
		os.Exit(2)
	}

	outcome := filter.Validate(offers, filter.Criteria{
		Stops:           cat,
		PriceMin:        *min,
		PriceMax:        *max,
		OriginCode:      *origin,
		DestinationCode: *dest,
	})

	if err := encodeJSON(os.Stdout, outcome, *pretty); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write outcome: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "offers=%d pass=%d fail=%d\n",
		len(offers), len(outcome.Pass), len(outcome.Fail))
	if len(outcome.Fail) > 0 {
		os.Exit(1)
	}
}
