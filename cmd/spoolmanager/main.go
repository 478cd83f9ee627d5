package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/valentindosimont/spoolmanager/internal/app"
	"github.com/valentindosimont/spoolmanager/internal/spool"
	"github.com/valentindosimont/spoolmanager/internal/store"
	"github.com/valentindosimont/spoolmanager/internal/usage"
)

const usageText = `usage: spoolmanager [-config file] <command> [arguments]

commands:
  watch [-from-start] [logfile]   monitor a live command log
  replay [-metrics-file f] file   account a G-code file
  list [flags]                    list spools
  add [flags]                     add a spool
  copy -template id -name name    add a spool from a template
  delete id                       delete a spool
  select tool id                  load a spool into a tool
  deselect tool                   unload a tool
  tools                           show loaded spools
  catalogs                        show known vendors, materials, labels, colors
  backup                          copy the database
  info                            show database information
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("spoolmanager", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "config file (default ~/.config/spoolmanager/config.yaml)")
	global.Usage = func() { fmt.Fprint(stderr, usageText) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}
	cmd, cmdArgs := global.Arg(0), global.Args()[1:]

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	// The monitor owns the terminal
	if cmd == "watch" && cfg.Logging.File == "" {
		cfg.Logging.File = app.DefaultLogFile(cfg)
	}

	application, err := app.New(cfg, stderr)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer func() { _ = application.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "watch":
		return cmdWatch(ctx, application, cmdArgs)
	case "replay":
		return cmdReplay(ctx, application, cmdArgs, stdout)
	case "list":
		return cmdList(ctx, application, cmdArgs, stdout)
	case "add":
		return cmdAdd(ctx, application, cmdArgs, stdout)
	case "copy":
		return cmdCopy(ctx, application, cmdArgs, stdout)
	case "delete":
		return cmdDelete(ctx, application, cmdArgs)
	case "select":
		return cmdSelect(ctx, application, cmdArgs)
	case "deselect":
		return cmdDeselect(ctx, application, cmdArgs)
	case "tools":
		return cmdTools(ctx, application, stdout)
	case "catalogs":
		return cmdCatalogs(ctx, application, stdout)
	case "backup":
		return cmdBackup(ctx, application, stdout)
	case "info":
		return cmdInfo(ctx, application, stdout)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdWatch(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fromStart := fs.Bool("from-start", false, "account the existing log content too")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := a.Config().Monitor.CommandLog
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if path == "" {
		return errors.New("no command log given (argument or monitor.command_log)")
	}

	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Watch(ctx, path, *fromStart)
}

func cmdReplay(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics to this file afterwards")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("replay needs exactly one G-code file")
	}

	if err := a.Start(ctx); err != nil {
		return err
	}
	lines, err := a.Replay(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	snap := a.Tracker().Snapshot()
	fmt.Fprintf(out, "%d lines, session %s\n", lines, snap.SessionID)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tSPOOL\tEXTRUDED\tPENDING")
	for _, ts := range snap.Tools {
		spoolCol := "-"
		if ts.SpoolID != 0 {
			spoolCol = strconv.FormatInt(ts.SpoolID, 10)
		}
		fmt.Fprintf(w, "T%d\t%s\t%.1fmm\t%.1fmm\n", ts.Tool, spoolCol, ts.Extruded, ts.Pending)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	printReport(out, a.SessionReport())

	if *metricsFile != "" {
		if err := a.WriteMetrics(*metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func printReport(out io.Writer, r usage.Report) {
	if len(r.Spools) == 0 {
		fmt.Fprintln(out, "no filament charged to any spool")
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SPOOL\tNAME\tTOOLS\tUSED\tLENGTH\tCOST\tREMAINING")
	for _, u := range r.Spools {
		cost := "-"
		if u.CostKnown {
			cost = strings.TrimSpace(fmt.Sprintf("%.2f %s", u.Cost, u.CostUnit))
		}
		remaining := "?"
		if u.Remaining != nil {
			remaining = fmt.Sprintf("%.1fg", *u.Remaining)
		}
		switch {
		case u.Empty:
			remaining += " (empty)"
		case u.Low:
			remaining += " (low)"
		}
		tools := make([]string, len(u.Tools))
		for i, t := range u.Tools {
			tools[i] = "T" + strconv.Itoa(t)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2fg\t%.1fmm\t%s\t%s\n",
			u.SpoolID, u.DisplayName, strings.Join(tools, ","), u.Grams, u.LengthMM, cost, remaining)
	}
	_ = w.Flush()

	var units []string
	for unit := range r.TotalCost() {
		units = append(units, unit)
	}
	sort.Strings(units)
	total := fmt.Sprintf("total %.2fg over %.1fmm", r.TotalGrams(), r.TotalLengthMM())
	for _, unit := range units {
		total += strings.TrimRight(fmt.Sprintf(", %.2f %s", r.TotalCost()[unit], unit), " ")
	}
	fmt.Fprintln(out, total)
}

func cmdList(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	material := fs.String("material", "all", `material filter: "all", "" for unset, or a comma separated list`)
	vendor := fs.String("vendor", "all", "vendor filter, like -material")
	color := fs.String("color", "all", `color filter: "all" or "#rrggbb;name,..."`)
	templates := fs.Bool("templates", false, "only templates")
	hideEmpty := fs.Bool("hide-empty", false, "hide empty spools")
	hideInactive := fs.Bool("hide-inactive", false, "hide inactive spools")
	sortCol := fs.String("sort", "", "displayName, lastUse, firstUse, remaining or material")
	desc := fs.Bool("desc", false, "descending order")
	from := fs.Int("from", 0, "offset")
	size := fs.Int("size", 0, "page size (0 for all)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var filters []string
	if *templates {
		filters = append(filters, "onlyTemplates")
	}
	if *hideEmpty {
		filters = append(filters, "hideEmptySpools")
	}
	if *hideInactive {
		filters = append(filters, "hideInactiveSpools")
	}
	params := map[string]string{
		"from":           strconv.Itoa(*from),
		"to":             strconv.Itoa(*size),
		"materialFilter": *material,
		"vendorFilter":   *vendor,
		"colorFilter":    *color,
		"filterName":     strings.Join(filters, ","),
		"sortColumn":     *sortCol,
	}
	if *desc {
		params["sortOrder"] = "desc"
	}
	q, err := spool.ParseQuery(params)
	if err != nil {
		return err
	}

	page, err := a.Inventory().List(ctx, q)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVENDOR\tMATERIAL\tCOLOR\tREMAINING\tUSED\tLAST USE")
	for _, sp := range page.Spools {
		sum := sp.Summarize()
		remaining := "?"
		if sum.RemainingWeight != nil {
			remaining = fmt.Sprintf("%.1fg", *sum.RemainingWeight)
			if sum.RemainingPercentage != nil {
				remaining += fmt.Sprintf(" (%.0f%%)", *sum.RemainingPercentage)
			}
		}
		used := "-"
		if sp.UsedWeight != nil {
			used = fmt.Sprintf("%.1fg", *sp.UsedWeight)
		}
		lastUse := "-"
		if sp.LastUse != nil {
			lastUse = sp.LastUse.Local().Format("2006-01-02 15:04")
		}
		name := sp.DisplayName
		if sp.Template() {
			name += " [template]"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sp.ID, name, sp.Vendor, sp.Material, strings.TrimSpace(sp.ColorName+" "+sp.Color), remaining, used, lastUse)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d spools\n", len(page.Spools), page.Total)
	return nil
}

// optFloat is a flag that stays nil unless given.
type optFloat struct{ v *float64 }

func (o *optFloat) String() string {
	if o.v == nil {
		return ""
	}
	return strconv.FormatFloat(*o.v, 'f', -1, 64)
}

func (o *optFloat) Set(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	o.v = &f
	return nil
}

func cmdAdd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "display name (required)")
	vendor := fs.String("vendor", "", "vendor")
	material := fs.String("material", "", "material, e.g. PLA")
	colorName := fs.String("color-name", "", "color name")
	color := fs.String("color", "", "color code #rrggbb")
	code := fs.String("code", "", "bar or QR code")
	costUnit := fs.String("cost-unit", "", "currency of -cost")
	labels := fs.String("labels", "", "comma separated labels")
	template := fs.Bool("template", false, "store as template")
	var diameter, density, total, spoolWeight, cost optFloat
	fs.Var(&diameter, "diameter", "filament diameter in mm")
	fs.Var(&density, "density", "density in g/cm³")
	fs.Var(&total, "total", "net filament weight in g")
	fs.Var(&spoolWeight, "spool-weight", "empty spool weight in g")
	fs.Var(&cost, "cost", "purchase price")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sp := &spool.Spool{
		DisplayName: *name,
		Vendor:      *vendor,
		Material:    *material,
		ColorName:   *colorName,
		Color:       *color,
		Code:        *code,
		CostUnit:    *costUnit,
		Diameter:    diameter.v,
		Density:     density.v,
		TotalWeight: total.v,
		SpoolWeight: spoolWeight.v,
		Cost:        cost.v,
		IsTemplate:  spool.Ptr(*template),
	}
	if *labels != "" {
		for _, l := range strings.Split(*labels, ",") {
			sp.Labels = append(sp.Labels, strings.TrimSpace(l))
		}
	}

	if err := a.Inventory().Add(ctx, sp); err != nil {
		return err
	}
	fmt.Fprintf(out, "added spool %d\n", sp.ID)
	return nil
}

func cmdCopy(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("copy", flag.ContinueOnError)
	templateID := fs.Int64("template", 0, "template spool id")
	name := fs.String("name", "", "display name of the new spool (defaults to the template's)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *templateID == 0 {
		return errors.New("copy needs -template")
	}

	sp, err := a.Inventory().CopyFromTemplate(ctx, *templateID, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "added spool %d from template %d\n", sp.ID, *templateID)
	return nil
}

func cmdDelete(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("delete needs a spool id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid spool id %q", args[0])
	}
	return a.Inventory().Delete(ctx, id)
}

func cmdSelect(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 2 {
		return errors.New("select needs a tool and a spool id")
	}
	tool, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(args[0]), "T"))
	if err != nil {
		return fmt.Errorf("invalid tool %q", args[0])
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid spool id %q", args[1])
	}
	return a.Tracker().SelectSpool(ctx, tool, id)
}

func cmdDeselect(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("deselect needs a tool")
	}
	tool, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(args[0]), "T"))
	if err != nil {
		return fmt.Errorf("invalid tool %q", args[0])
	}
	return a.Tracker().DeselectSpool(ctx, tool)
}

func cmdTools(ctx context.Context, a *app.App, out io.Writer) error {
	all := a.Assignments().All()
	if len(all) == 0 {
		fmt.Fprintln(out, "no spools loaded")
		return nil
	}
	toolIdx := make([]int, 0, len(all))
	for tool := range all {
		toolIdx = append(toolIdx, tool)
	}
	sort.Ints(toolIdx)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tSPOOL\tNAME\tREMAINING")
	for _, tool := range toolIdx {
		id := all[tool]
		sp, err := a.Inventory().Get(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "T%d\t%d\t(%v)\t\n", tool, id, err)
			continue
		}
		remaining := "?"
		if r := sp.Summarize().RemainingWeight; r != nil {
			remaining = fmt.Sprintf("%.1fg", *r)
		}
		fmt.Fprintf(w, "T%d\t%d\t%s\t%s\n", tool, id, sp.DisplayName, remaining)
	}
	return w.Flush()
}

func cmdCatalogs(ctx context.Context, a *app.App, out io.Writer) error {
	c, err := a.Inventory().Catalogs(ctx)
	if err != nil {
		return err
	}
	printList := func(title string, values []string) {
		shown := make([]string, 0, len(values))
		for _, v := range values {
			if v == "" {
				v = `""`
			}
			shown = append(shown, v)
		}
		fmt.Fprintf(out, "%-10s %s\n", title+":", strings.Join(shown, ", "))
	}
	printList("vendors", c.Vendors)
	printList("materials", c.Materials)
	printList("labels", c.Labels)
	colors := make([]string, 0, len(c.Colors))
	for _, col := range c.Colors {
		colors = append(colors, col.Code+";"+col.Name)
	}
	printList("colors", colors)
	return nil
}

func cmdBackup(ctx context.Context, a *app.App, out io.Writer) error {
	path, err := a.Store().Backup(ctx)
	if errors.Is(err, store.ErrBackupExists) {
		return fmt.Errorf("%w; wait a minute and retry", err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "backup written to %s\n", path)
	return nil
}

func cmdInfo(ctx context.Context, a *app.App, out io.Writer) error {
	meta, err := a.Store().Meta(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "database:       %s\n", meta.Path)
	fmt.Fprintf(out, "scheme version: %s\n", meta.SchemeVersion)
	fmt.Fprintf(out, "spools:         %d\n", meta.SpoolCount)
	return nil
}
