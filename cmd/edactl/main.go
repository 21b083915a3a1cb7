package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/chart"
	"github.com/magpierre/dsb-eda/internal/config"
	"github.com/magpierre/dsb-eda/internal/explore"
	"github.com/magpierre/dsb-eda/internal/export"
	"github.com/magpierre/dsb-eda/internal/filter"
	"github.com/magpierre/dsb-eda/internal/loader"
	"github.com/magpierre/dsb-eda/internal/sample"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var run func(context.Context, []string) int
	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "schema":
		run = runSchema
	case "preview":
		run = runPreview
	case "distinct":
		run = runDistinct
	case "filter":
		run = runFilter
	case "describe":
		run = runDescribe
	case "corr":
		run = runCorr
	case "chart":
		run = runChart
	case "view":
		run = runView
	case "export":
		run = runExport
	case "tables":
		run = runTables
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
	os.Exit(run(ctx, os.Args[2:]))
}

// common holds the flags every command shares: where the data comes from,
// which profile to use and the row selection applied before the command.
type common struct {
	input      string
	sampleName string
	deltaTable string
	deltaCols  string
	deltaLimit int
	profile    string
	rowCap     int
	filters    multiFlag
	query      string
	derive     multiFlag
	verbose    bool

	cfg config.Config
}

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, "; ") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func newFlagSet(name string, c *common) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&c.input, "input", "", "Data file (.csv, .tsv, .txt, .json, .parquet) or Delta Sharing profile")
	fs.StringVar(&c.sampleName, "sample", "", "Packaged sample dataset ("+strings.Join(sample.Names(), ", ")+")")
	fs.StringVar(&c.deltaTable, "table", "", "Delta Sharing table share.schema.table (with --input pointing at a profile)")
	fs.StringVar(&c.deltaCols, "table-columns", "", "Delta Sharing: comma-separated columns to keep")
	fs.IntVar(&c.deltaLimit, "table-limit", 0, "Delta Sharing: keep only the first N rows")
	fs.StringVar(&c.profile, "profile", c.cfg.Profile, "Configuration profile (env: EDA_PROFILE)")
	fs.IntVar(&c.rowCap, "row-cap", 0, "Row cap for point charts, 0 keeps the profile value (env: EDA_ROW_CAP)")
	fs.Var(&c.filters, "filter", "Categorical filter column=value1,value2, repeatable (rows must match every one)")
	fs.StringVar(&c.query, "query", "", "Search query, e.g. \"species = setosa AND petal_length > 1.5\"")
	fs.Var(&c.derive, "derive", "Derived column name=expression over row[\"col\"], repeatable")
	fs.BoolVar(&c.verbose, "verbose", c.verbose, "Log engine activity to stderr (env: EDA_VERBOSE)")
	return fs
}

// prepare loads configuration, parses flags and opens the session.
func prepare(ctx context.Context, name string, args []string, register func(*flag.FlagSet)) (*explore.Session, *common, int) {
	cfg, err := config.FromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return nil, nil, 2
	}
	verbose, err := envBool("EDA_VERBOSE")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return nil, nil, 2
	}
	c := &common{cfg: cfg, verbose: verbose}

	fs := newFlagSet(name, c)
	if register != nil {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, 2
	}

	c.cfg.Profile = c.profile
	if c.rowCap != 0 {
		if err := c.cfg.SetRowCap(c.rowCap); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
			return nil, nil, 2
		}
	}
	if err := c.cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return nil, nil, 2
	}
	profile, _ := c.cfg.Active()

	src, err := c.source()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s\n", err)
		return nil, nil, 2
	}

	logger := log.New(io.Discard, "", 0)
	if c.verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	s, err := explore.New(explore.WithProfile(profile), explore.WithLogger(logger))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return nil, nil, 2
	}
	if err := s.Load(ctx, src); err != nil {
		return nil, nil, fail("load", err)
	}
	for _, d := range c.derive {
		name, expr, ok := strings.Cut(d, "=")
		if !ok {
			_, _ = fmt.Fprintf(os.Stderr, "--derive wants name=expression, got %q\n", d)
			return nil, nil, 2
		}
		if err := s.Derive(strings.TrimSpace(name), expr); err != nil {
			return nil, nil, fail("derive", err)
		}
	}
	return s, c, 0
}

func (c *common) source() (loader.Source, error) {
	switch {
	case c.sampleName != "" && c.input != "":
		return nil, errors.New("use either --sample or --input, not both")
	case c.sampleName != "":
		return loader.Sample(c.sampleName), nil
	case c.input == "":
		return loader.Sample(sample.Iris), nil
	case c.deltaTable != "":
		profile, err := os.ReadFile(c.input)
		if err != nil {
			return nil, fmt.Errorf("read Delta Sharing profile: %w", err)
		}
		timeout, err := envDuration("EDA_DELTA_TIMEOUT", c.cfg.DeltaSharingTimeout)
		if err != nil {
			return nil, err
		}
		src := loader.DeltaSharing(string(profile), c.deltaTable)
		src.Timeout = timeout
		src.Columns = splitList(c.deltaCols)
		src.Limit = c.deltaLimit
		return src, nil
	default:
		return loader.File(c.input), nil
	}
}

// rows applies every --filter and --query to the current dataset.
func (c *common) rows(s *explore.Session) (*datatable.Dataset, error) {
	specs, err := parseFilters(c.filters)
	if err != nil {
		return nil, err
	}
	return s.Select(specs, c.query)
}

func parseFilters(flags []string) ([]filter.Spec, error) {
	var specs []filter.Spec
	for _, f := range flags {
		spec, err := parseFilter(f)
		if err != nil {
			return nil, err
		}
		if spec != nil {
			specs = append(specs, *spec)
		}
	}
	return specs, nil
}

func parseFilter(s string) (*filter.Spec, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	column, values, ok := strings.Cut(s, "=")
	if !ok {
		return nil, datatable.Errorf(datatable.ErrInvalidFilter, "--filter wants column=value1,value2, got %q", s)
	}
	spec := &filter.Spec{Column: strings.TrimSpace(column), Values: []string{}}
	for _, v := range strings.Split(values, ",") {
		if v = strings.TrimSpace(v); v != "" {
			spec.Values = append(spec.Values, v)
		}
	}
	return spec, nil
}

func runSchema(ctx context.Context, args []string) int {
	s, _, code := prepare(ctx, "schema", args, nil)
	if s == nil {
		return code
	}
	sch, err := s.Schema()
	if err != nil {
		return fail("schema", err)
	}
	return emit(sch)
}

func runPreview(ctx context.Context, args []string) int {
	var n int
	s, _, code := prepare(ctx, "preview", args, func(fs *flag.FlagSet) {
		fs.IntVar(&n, "rows", 0, "Rows to show, 0 uses the profile's preview_rows")
	})
	if s == nil {
		return code
	}
	ds, err := s.Preview(n)
	if err != nil {
		return fail("preview", err)
	}
	if err := export.JSON(os.Stdout, ds); err != nil {
		return fail("preview", err)
	}
	return 0
}

func runDistinct(ctx context.Context, args []string) int {
	var column string
	s, _, code := prepare(ctx, "distinct", args, func(fs *flag.FlagSet) {
		fs.StringVar(&column, "column", "", "Categorical column")
	})
	if s == nil {
		return code
	}
	values, err := s.Distinct(column)
	if err != nil {
		return fail("distinct", err)
	}
	return emit(values)
}

func runFilter(ctx context.Context, args []string) int {
	var format string
	s, c, code := prepare(ctx, "filter", args, func(fs *flag.FlagSet) {
		fs.StringVar(&format, "format", "csv", "Output format: csv, json or parquet")
	})
	if s == nil {
		return code
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return fail("filter", err)
	}
	ds, err := c.rows(s)
	if err != nil {
		return fail("filter", err)
	}
	if err := s.Export(os.Stdout, ds, f); err != nil {
		return fail("filter", err)
	}
	return 0
}

func runDescribe(ctx context.Context, args []string) int {
	s, c, code := prepare(ctx, "describe", args, nil)
	if s == nil {
		return code
	}
	ds, err := c.rows(s)
	if err != nil {
		return fail("describe", err)
	}
	sum, err := s.Describe(ds)
	if err != nil {
		return fail("describe", err)
	}
	return emit(sum)
}

func runCorr(ctx context.Context, args []string) int {
	var columns string
	s, c, code := prepare(ctx, "corr", args, func(fs *flag.FlagSet) {
		fs.StringVar(&columns, "columns", "", "Comma-separated numeric columns, empty for all")
	})
	if s == nil {
		return code
	}
	ds, err := c.rows(s)
	if err != nil {
		return fail("corr", err)
	}
	m, err := s.Correlation(ds, splitList(columns)...)
	if err != nil {
		return fail("corr", err)
	}
	return emit(m)
}

func runChart(ctx context.Context, args []string) int {
	var req chart.Request
	var kind, columns, sortDir string
	s, c, code := prepare(ctx, "chart", args, func(fs *flag.FlagSet) {
		fs.StringVar(&kind, "kind", "", "Chart kind: histogram, box, scatter, line, bar, heatmap")
		fs.StringVar(&req.X, "x", "", "X column (line: \""+chart.RowIndex+"\" plots by row position)")
		fs.StringVar(&req.Y, "y", "", "Y column")
		fs.StringVar(&req.Color, "color", "", "Categorical grouping column")
		fs.StringVar(&columns, "columns", "", "Heatmap columns, comma-separated")
		fs.StringVar(&sortDir, "sort", "", "Line ordering by x: asc, desc or none (default from profile)")
		fs.IntVar(&req.RowCap, "cap", 0, "Row cap for this chart, 0 uses the profile's row_cap")
	})
	if s == nil {
		return code
	}
	req.Kind = chart.Kind(kind)
	req.Columns = splitList(columns)
	if sortDir != "" {
		dir, err := datatable.ParseSortDirection(sortDir)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%s\n", err)
			return 2
		}
		req.Sort = &dir
	}

	ds, err := c.rows(s)
	if err != nil {
		return fail("chart", err)
	}
	spec, err := s.Dispatch(ds, req)
	if err != nil {
		return fail("chart", err)
	}
	return emit(chartOutput(spec))
}

// chartDocument is a Spec with its data slice inlined as row objects.
type chartDocument struct {
	*chart.Spec
	Data json.RawMessage `json:"data"`
}

func chartOutput(spec *chart.Spec) any {
	var buf strings.Builder
	if err := export.JSON(&buf, spec.Data); err != nil {
		return spec
	}
	return chartDocument{Spec: spec, Data: json.RawMessage(buf.String())}
}

func runView(ctx context.Context, args []string) int {
	var requestPath string
	s, c, code := prepare(ctx, "view", args, func(fs *flag.FlagSet) {
		fs.StringVar(&requestPath, "request", "", "View request file (YAML or JSON)")
	})
	if s == nil {
		return code
	}
	if requestPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "view requires --request")
		return 2
	}
	b, err := os.ReadFile(requestPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read view request: %s\n", err)
		return 2
	}
	var req explore.ViewRequest
	if strings.HasSuffix(strings.ToLower(requestPath), ".json") {
		err = json.Unmarshal(b, &req)
	} else {
		err = yaml.Unmarshal(b, &req)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "parse view request: %s\n", err)
		return 2
	}

	// --filter and --query narrow the request file further
	specs, err := parseFilters(c.filters)
	if err != nil {
		return fail("view", err)
	}
	req.Filters = append(req.Filters, specs...)
	switch {
	case req.Query == "":
		req.Query = c.query
	case c.query != "":
		req.Query += " AND " + c.query
	}

	v, err := s.View(req)
	if err != nil {
		return fail("view", err)
	}
	return emit(v)
}

func runExport(ctx context.Context, args []string) int {
	var format, output string
	s, c, code := prepare(ctx, "export", args, func(fs *flag.FlagSet) {
		fs.StringVar(&format, "format", "", "Output format: csv, json or parquet (default from --output extension)")
		fs.StringVar(&output, "output", "", "Output file path")
	})
	if s == nil {
		return code
	}
	if output == "" {
		_, _ = fmt.Fprintln(os.Stderr, "export requires --output")
		return 2
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return fail("export", err)
	}

	ds, err := c.rows(s)
	if err != nil {
		return fail("export", err)
	}
	file, err := os.Create(output)
	if err != nil {
		return fail("export", err)
	}
	if err := s.Export(file, ds, f); err != nil {
		_ = file.Close()
		return fail("export", err)
	}
	if err := file.Close(); err != nil {
		return fail("export", err)
	}
	_, _ = fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", ds.RowCount(), output)
	return 0
}

func runTables(ctx context.Context, args []string) int {
	cfg, err := config.FromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return 2
	}
	fs := flag.NewFlagSet("tables", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	profilePath := fs.String("input", "", "Delta Sharing profile file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *profilePath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "tables requires --input")
		return 2
	}
	profile, err := os.ReadFile(*profilePath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read Delta Sharing profile: %s\n", err)
		return 2
	}
	timeout, err := envDuration("EDA_DELTA_TIMEOUT", cfg.DeltaSharingTimeout)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return 2
	}

	names, err := loader.DeltaSharingTables(ctx, string(profile), timeout)
	if err != nil {
		return fail("tables", err)
	}
	return emit(names)
}

func emit(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "encode output: %s\n", err)
		return 1
	}
	return 0
}

// fail reports err and maps it to an exit code: 3 for unreadable or empty
// input, 4 for requests the data cannot satisfy, 1 otherwise.
func fail(op string, err error) int {
	_, _ = fmt.Fprintf(os.Stderr, "%s failed: %s\n", op, err)
	switch {
	case errors.Is(err, datatable.ErrMalformedInput), errors.Is(err, datatable.ErrEmptyDataset):
		return 3
	case errors.Is(err, datatable.ErrInvalidColumn),
		errors.Is(err, datatable.ErrUnsupportedRequest),
		errors.Is(err, datatable.ErrNoNumericColumns),
		errors.Is(err, datatable.ErrInvalidFilter),
		errors.Is(err, datatable.ErrInvalidExpression):
		return 4
	default:
		return 1
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `edactl: explore tabular data from the command line

Usage:
  edactl <command> [flags]

Commands:
  schema    Classify columns as numeric or categorical
  preview   Show the first rows
  distinct  List the values of a categorical column
  filter    Write the filtered rows (csv, json or parquet) to stdout
  describe  Descriptive statistics of the numeric columns
  corr      Pearson correlation matrix
  chart     Resolve one chart request into a chart specification
  view      Run a full view cycle from a YAML/JSON request file
  export    Write the (filtered) dataset to a file
  tables    List the tables a Delta Sharing profile can read

Examples:
  edactl describe --sample iris --filter "species=setosa,versicolor"
  edactl filter --input sales.csv --filter "store=a,b" --filter "region=n" --query "qty > 5"
  edactl chart --input data.csv --kind scatter --x price --y qty --color store
  edactl tables --input config.share
  edactl describe --input config.share --table share.schema.table --table-limit 1000
  edactl export --input data.json --derive 'ratio=row["a"]/row["b"]' --output out.parquet

Environment:
  EDA_CONFIG         YAML configuration file with profiles
  EDA_PROFILE        Active profile (dashboard, explorer or one from EDA_CONFIG)
  EDA_ROW_CAP        Row cap override for the active profile
  EDA_VERBOSE        If set to true/1, log engine activity to stderr
  EDA_DELTA_TIMEOUT  Per-call Delta Sharing timeout (e.g. 30s)

`)
}
