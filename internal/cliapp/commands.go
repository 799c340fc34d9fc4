package cliapp

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/naming"
	"mcmappings/internal/engine/resolver"
)

var errUsage = stderrors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

type command func(ctx context.Context, rt *runtime, args []string) error

var commands = map[string]command{
	"versions":       runVersions,
	"resolve":        runResolve,
	"search":         runSearch,
	"export":         runExport,
	"delete-version": runDeleteVersion,
}

func runVersions(ctx context.Context, rt *runtime, args []string) error {
	if len(args) > 1 {
		return usageError("versions takes at most one version")
	}
	if len(args) == 1 {
		return printVersion(ctx, rt, args[0])
	}

	versions, err := rt.store.ListSoftwareVersions(ctx)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(rt.stdout, missingStyle.Render("no software versions registered"))
		return nil
	}
	t := newTable("version", "releases", "loaded")
	for _, v := range versions {
		releases, err := rt.store.ListMappingReleases(ctx, v.ID)
		if err != nil {
			return err
		}
		loaded := 0
		for _, r := range releases {
			if r.Loaded {
				loaded++
			}
		}
		t.Row(v.Name, strconv.Itoa(len(releases)), strconv.Itoa(loaded))
	}
	fmt.Fprintln(rt.stdout, t.Render())
	return nil
}

func printVersion(ctx context.Context, rt *runtime, name string) error {
	v, err := rt.store.Version(ctx, name)
	if err != nil {
		return err
	}
	counts := make(map[mappingdb.SymbolKind]int, 3)
	for _, kind := range []mappingdb.SymbolKind{mappingdb.KindClass, mappingdb.KindMethod, mappingdb.KindField} {
		n, err := rt.store.CountBaseline(ctx, v.ID, kind)
		if err != nil {
			return err
		}
		counts[kind] = n
	}
	fmt.Fprintf(rt.stdout, "%s  classes %d  methods %d  fields %d\n",
		titleStyle.Render(v.Name), counts[mappingdb.KindClass], counts[mappingdb.KindMethod], counts[mappingdb.KindField])

	releases, err := rt.store.ListMappingReleases(ctx, v.ID)
	if err != nil {
		return err
	}
	if len(releases) == 0 {
		fmt.Fprintln(rt.stdout, missingStyle.Render("no mapping releases"))
		return nil
	}
	t := newTable("release", "channel", "loaded")
	for _, r := range releases {
		state := missingStyle.Render("no")
		if r.Loaded {
			state = loadedStyle.Render("yes")
		}
		mv := r.McpVersion()
		t.Row(mv.String(), string(mv.Channel), state)
	}
	fmt.Fprintln(rt.stdout, t.Render())
	return nil
}

// releaseID maps a release spelling such as "snapshot_20180925" to its id
// within version. An empty spelling means no release.
func releaseID(ctx context.Context, rt *runtime, version, spelling string) (int64, error) {
	spelling = strings.TrimSpace(spelling)
	if spelling == "" {
		return 0, nil
	}
	spec, err := naming.ParseMcpVersionSpec(spelling)
	if err != nil {
		return 0, err
	}
	v, err := rt.store.Version(ctx, version)
	if err != nil {
		return 0, err
	}
	r, err := rt.store.ReleaseFor(ctx, v.ID, spec.Version)
	if err != nil {
		return 0, err
	}
	return r.ID, nil
}

func runResolve(ctx context.Context, rt *runtime, args []string) error {
	fs := commandFlags("resolve", rt.stderr)
	version := fs.String("version", "", "Software version, e.g. 1.12.2")
	from := fs.String("from", "obf", "Naming system the arguments are written in")
	kind := fs.String("kind", "", "class, field or method (default: inferred from the argument count)")
	mcp := fs.String("mcp", "", "Mapping release, e.g. snapshot_20180925")
	systems := fs.String("systems", "", "Comma-separated systems to show (default: all)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rest := fs.Args()
	if *version == "" {
		return usageError("resolve needs -version")
	}
	if len(rest) < 1 || len(rest) > 3 {
		return usageError("resolve takes <class> [member [descriptor]]")
	}

	q := resolver.Query{Version: *version, Kind: mappingdb.SymbolKind(*kind), Class: rest[0]}
	if q.Kind == "" {
		q.Kind = []mappingdb.SymbolKind{mappingdb.KindClass, mappingdb.KindField, mappingdb.KindMethod}[len(rest)-1]
	}
	if len(rest) > 1 {
		q.Member = rest[1]
	}
	if len(rest) > 2 {
		q.Signature = rest[2]
	}
	source, err := naming.ParseSystem(*from)
	if err != nil {
		return err
	}
	q.Source = source
	if q.Systems, err = parseSystemList(*systems); err != nil {
		return err
	}
	if q.ReleaseID, err = releaseID(ctx, rt, *version, *mcp); err != nil {
		return err
	}

	x, err := rt.resolver.Resolve(ctx, q)
	if err != nil {
		return err
	}
	if x == nil {
		fmt.Fprintf(rt.stdout, "%s %s %s\n", missingStyle.Render("no "+string(q.Kind)+" named"),
			strings.Join(rest, " "), missingStyle.Render("in "+source.String()))
		return nil
	}
	printCrossReference(rt.stdout, x)
	return nil
}

func parseSystemList(raw string) ([]naming.System, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return naming.ParseSystems(raw)
}

func printCrossReference(w io.Writer, x *resolver.CrossReference) {
	headers := []string{"system", "class"}
	if x.Member != nil {
		headers = append(headers, string(x.Kind))
	}
	if x.Signature != nil {
		headers = append(headers, "descriptor")
	}
	t := newTable(headers...)
	for _, sys := range x.Systems {
		names := x.In(sys)
		row := []string{sys.String(), names.Class}
		if x.Member != nil {
			row = append(row, orMissing(names.Member.String, names.Member.Valid))
		}
		if x.Signature != nil {
			row = append(row, orMissing(names.Signature.String, names.Signature.Valid))
		}
		t.Row(row...)
	}
	fmt.Fprintln(w, t.Render())
}

func runSearch(ctx context.Context, rt *runtime, args []string) error {
	fs := commandFlags("search", rt.stderr)
	version := fs.String("version", "", "Software version, e.g. 1.12.2")
	system := fs.String("system", "obf", "Naming system the glob matches against")
	mcp := fs.String("mcp", "", "Mapping release, e.g. snapshot_20180925")
	limit := fs.Int("limit", 0, "Maximum matches (default: resolver.search_limit)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *version == "" {
		return usageError("search needs -version")
	}
	if fs.NArg() != 1 {
		return usageError("search takes exactly one glob")
	}

	sys, err := naming.ParseSystem(*system)
	if err != nil {
		return err
	}
	rel, err := releaseID(ctx, rt, *version, *mcp)
	if err != nil {
		return err
	}
	found, err := rt.resolver.Search(ctx, resolver.SearchQuery{
		Version:   *version,
		System:    sys,
		Pattern:   fs.Arg(0),
		ReleaseID: rel,
		Limit:     *limit,
	})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(rt.stdout, missingStyle.Render("no matching classes"))
		return nil
	}

	systems := found[0].Systems
	headers := make([]string, 0, len(systems))
	for _, s := range systems {
		headers = append(headers, s.String())
	}
	t := newTable(headers...)
	for _, x := range found {
		row := make([]string, 0, len(systems))
		for _, s := range systems {
			row = append(row, x.In(s).Class)
		}
		t.Row(row...)
	}
	fmt.Fprintln(rt.stdout, t.Render())
	return nil
}

func runExport(ctx context.Context, rt *runtime, args []string) (err error) {
	fs := commandFlags("export", rt.stderr)
	version := fs.String("version", "", "Software version, e.g. 1.12.2")
	mcp := fs.String("mcp", "", "Mapping release, needed when either side is mcp")
	out := fs.String("o", "", "Output file (default: stdout)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *version == "" {
		return usageError("export needs -version")
	}
	if fs.NArg() != 1 {
		return usageError("export takes exactly one target, e.g. obf2srg or spigot2mcp-classes")
	}

	target, err := naming.ParseTarget(fs.Arg(0))
	if err != nil {
		return err
	}
	rel, err := releaseID(ctx, rt, *version, *mcp)
	if err != nil {
		return err
	}

	w := rt.stdout
	if *out != "" {
		f, cerr := os.Create(*out)
		if cerr != nil {
			return fmt.Errorf("create export file: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close export file: %w", cerr)
			}
		}()
		w = f
	}

	stats, err := rt.resolver.Export(ctx, w, resolver.ExportQuery{Version: *version, Target: target, ReleaseID: rel})
	if err != nil {
		return err
	}
	if *out != "" {
		fmt.Fprintf(rt.stdout, "%s %s: %d classes, %d fields, %d methods\n",
			titleStyle.Render(target.String()), *out, stats.Classes, stats.Fields, stats.Methods)
	}
	return nil
}

func runDeleteVersion(ctx context.Context, rt *runtime, args []string) error {
	if len(args) != 1 {
		return usageError("delete-version takes exactly one version")
	}
	if err := rt.store.DeleteSoftwareVersion(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(rt.stdout, "deleted %s\n", args[0])
	return nil
}
