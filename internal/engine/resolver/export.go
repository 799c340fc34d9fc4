package resolver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mcmappings/internal/core/errors"
	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/descriptor"
	"mcmappings/internal/engine/naming"
	"mcmappings/internal/shared/observability"
)

type ExportQuery struct {
	Version   string
	Target    naming.Target
	ReleaseID int64
}

type ExportStats struct {
	Classes int
	Fields  int
	Methods int
}

// Export writes the mapping from q.Target.Original to q.Target.Renamed as
// SRG lines (CL, FD, MD). An entry is written only when the two systems give
// the symbol different names. Unrenamed names fall back along
// mcp -> srg -> obf and spigot -> obf.
func (r *Resolver) Export(ctx context.Context, w io.Writer, q ExportQuery) (ExportStats, error) {
	ctx, span := observability.Tracer.Start(ctx, "resolver.Export", trace.WithAttributes(
		attribute.String("target", q.Target.String()),
		attribute.String("version", q.Version),
	))
	defer span.End()

	var stats ExportStats
	t := q.Target
	if !t.Original.Valid() || !t.Renamed.Valid() || t.Original == t.Renamed {
		return stats, errors.Newf(errors.CodeValidationError, "invalid target %q", t)
	}
	version, err := r.src.Version(ctx, q.Version)
	if err != nil {
		return stats, err
	}
	if t.NeedsRelease() {
		if q.ReleaseID == 0 {
			return stats, errors.Newf(errors.CodeValidationError, "target %s needs a mapping release", t)
		}
		rel, err := r.release(ctx, q.ReleaseID, version.ID)
		if err != nil {
			return stats, err
		}
		if !rel.Loaded {
			return stats, errors.Newf(errors.CodeValidationError, "mapping release %s is not loaded", rel.McpVersion()).
				WithContext(errors.CtxRelease, rel.McpVersion().String())
		}
	}

	classes, err := r.all(ctx, mappingdb.KindClass, version.ID, q.ReleaseID)
	if err != nil {
		return stats, err
	}
	origClasses := make(map[string]string, len(classes))
	renamedClasses := make(map[string]string, len(classes))
	for _, x := range classes {
		obf, _ := x.Class.Name(naming.Obf)
		origClasses[obf] = effectiveClass(x, t.Original)
		renamedClasses[obf] = effectiveClass(x, t.Renamed)
	}

	bw := bufio.NewWriter(w)
	if t.Flags.IncludeClasses() {
		for _, x := range classes {
			obf, _ := x.Class.Name(naming.Obf)
			from, to := origClasses[obf], renamedClasses[obf]
			if from == to || (t.Flags.OnlyObf && from != obf) {
				continue
			}
			fmt.Fprintf(bw, "CL: %s %s\n", from, to)
			stats.Classes++
		}
	}

	if t.Flags.IncludeMembers() {
		fields, err := r.all(ctx, mappingdb.KindField, version.ID, q.ReleaseID)
		if err != nil {
			return stats, err
		}
		for _, x := range fields {
			from, to, ok := memberPair(x, t)
			if !ok {
				continue
			}
			fmt.Fprintf(bw, "FD: %s/%s %s/%s\n",
				effectiveClass(x, t.Original), from, effectiveClass(x, t.Renamed), to)
			stats.Fields++
		}

		methods, err := r.all(ctx, mappingdb.KindMethod, version.ID, q.ReleaseID)
		if err != nil {
			return stats, err
		}
		origRename := descriptor.MapRenamer(origClasses)
		renamedRename := descriptor.MapRenamer(renamedClasses)
		for _, x := range methods {
			from, to, ok := memberPair(x, t)
			if !ok {
				continue
			}
			obfSig, _ := x.Signature.Name(naming.Obf)
			fromSig, err := descriptor.RemapMethod(obfSig, origRename)
			if err != nil {
				return stats, err
			}
			toSig, err := descriptor.RemapMethod(obfSig, renamedRename)
			if err != nil {
				return stats, err
			}
			fmt.Fprintf(bw, "MD: %s/%s %s %s/%s %s\n",
				effectiveClass(x, t.Original), from, fromSig, effectiveClass(x, t.Renamed), to, toSig)
			stats.Methods++
		}
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("write %s export: %w", t, err)
	}
	r.logger.Info("exported target", "target", t.String(), "version", version.Name,
		"classes", stats.Classes, "fields", stats.Fields, "methods", stats.Methods)
	return stats, nil
}

// all resolves every baseline row of kind in a version, ordered by obf class
// then member name.
func (r *Resolver) all(ctx context.Context, kind mappingdb.SymbolKind, versionID, releaseID int64) ([]*CrossReference, error) {
	where := "c.minecraft_version = ?"
	if kind != mappingdb.KindClass {
		where = "m.minecraft_version = ?"
	}
	query, args := newOutward(kind, naming.AllSystems, releaseID).build(where, versionID)
	xrefs, err := r.collect(ctx, kind, naming.AllSystems, releaseID, query, args)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(xrefs, func(i, j int) bool {
		ci, _ := xrefs[i].Class.Name(naming.Obf)
		cj, _ := xrefs[j].Class.Name(naming.Obf)
		if ci != cj {
			return ci < cj
		}
		if xrefs[i].Member == nil {
			return false
		}
		mi, _ := xrefs[i].Member.Name(naming.Obf)
		mj, _ := xrefs[j].Member.Name(naming.Obf)
		if mi != mj {
			return mi < mj
		}
		return xrefs[i].BaselineID < xrefs[j].BaselineID
	})
	return xrefs, nil
}

func effectiveClass(x *CrossReference, sys naming.System) string {
	return x.In(sys).Class
}

func effectiveMember(x *CrossReference, sys naming.System) string {
	for {
		if name, ok := x.Member.Name(sys); ok {
			return name
		}
		switch sys {
		case naming.Mcp:
			sys = naming.Srg
		default:
			name, _ := x.Member.Name(naming.Obf)
			return name
		}
	}
}

// memberPair returns the member's names in the target's two systems, and
// whether the entry belongs in the export.
func memberPair(x *CrossReference, t naming.Target) (from, to string, ok bool) {
	from = effectiveMember(x, t.Original)
	to = effectiveMember(x, t.Renamed)
	if from == to {
		return "", "", false
	}
	if t.Flags.OnlyObf {
		if obf, _ := x.Member.Name(naming.Obf); from != obf {
			return "", "", false
		}
	}
	return from, to, true
}
