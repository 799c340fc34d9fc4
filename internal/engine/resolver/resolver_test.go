package resolver

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcmappings/internal/core/errors"
	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/naming"
)

const srgPlayer = "net/minecraft/entity/player/EntityPlayer"

type fixture struct {
	store    *mappingdb.Store
	resolver *Resolver
	version  mappingdb.SoftwareVersion

	classA, classC      int64
	fieldAB, fieldCD    int64
	methodAE, methodAE2 int64
	release, pending    int64
}

func openStore(t *testing.T) *mappingdb.Store {
	t.Helper()
	s, err := mappingdb.Open(context.Background(), filepath.Join(t.TempDir(), "mappings.sqlite"), mappingdb.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newResolver(t *testing.T, s *mappingdb.Store, cache bool) *Resolver {
	t.Helper()
	r, err := New(s, Options{CacheEnabled: cache, CacheSize: 64, SearchLimit: 50})
	require.NoError(t, err)
	return r
}

// newFixture loads version 1.12.2 with:
//
//	class a    srg EntityPlayer (full path), spigot EntityPlayer
//	field a.b  srg field_1_b, spigot world, mcp world (loaded snapshot)
//	method a.e ()V    srg func_2_e, mcp tick
//	method a.e (La;)V srg func_3_e
//	class c, field c.d: never renamed
func newFixture(t *testing.T, cache bool) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: openStore(t)}

	b, err := f.store.BeginVersion(ctx, "1.12.2")
	require.NoError(t, err)
	defer b.Rollback()
	f.version = b.Version()

	f.classA, err = b.InsertClass(ctx, "a")
	require.NoError(t, err)
	f.classC, err = b.InsertClass(ctx, "c")
	require.NoError(t, err)
	f.fieldAB, err = b.InsertField(ctx, f.classA, "b")
	require.NoError(t, err)
	f.fieldCD, err = b.InsertField(ctx, f.classC, "d")
	require.NoError(t, err)
	voidSig, err := b.InsertSignature(ctx, "()V")
	require.NoError(t, err)
	selfSig, err := b.InsertSignature(ctx, "(La;)V")
	require.NoError(t, err)
	f.methodAE, err = b.InsertMethod(ctx, f.classA, "e", voidSig)
	require.NoError(t, err)
	f.methodAE2, err = b.InsertMethod(ctx, f.classA, "e", selfSig)
	require.NoError(t, err)

	require.NoError(t, b.RecordClassRename(ctx, naming.Srg, f.classA, srgPlayer))
	require.NoError(t, b.RecordClassRename(ctx, naming.Spigot, f.classA, "EntityPlayer"))
	require.NoError(t, b.RecordFieldRename(ctx, naming.Srg, f.fieldAB, "field_1_b"))
	require.NoError(t, b.RecordFieldRename(ctx, naming.Spigot, f.fieldAB, "world"))
	require.NoError(t, b.RecordMethodRename(ctx, naming.Srg, f.methodAE, "func_2_e"))
	require.NoError(t, b.RecordMethodRename(ctx, naming.Srg, f.methodAE2, "func_3_e"))
	_, err = b.RemapSignatures(ctx, naming.Srg)
	require.NoError(t, err)
	_, err = b.RemapSignatures(ctx, naming.Spigot)
	require.NoError(t, err)
	require.NoError(t, b.Commit())

	f.release, err = f.store.RegisterMappingRelease(ctx, f.version.ID, 20180925, true)
	require.NoError(t, err)
	rb, err := f.store.BeginRelease(ctx, f.release)
	require.NoError(t, err)
	require.NoError(t, rb.RecordFieldRename(ctx, f.fieldAB, "world"))
	require.NoError(t, rb.RecordMethodRename(ctx, f.methodAE, "tick"))
	require.NoError(t, rb.Commit())

	f.pending, err = f.store.RegisterMappingRelease(ctx, f.version.ID, 39, false)
	require.NoError(t, err)

	f.resolver = newResolver(t, f.store, cache)
	return f
}

func name(t *testing.T, set NameSet, sys naming.System) string {
	t.Helper()
	v, ok := set.Name(sys)
	require.True(t, ok, "expected a %s name", sys)
	return v
}

func TestResolvePlayerWorldScenario(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	b, err := s.BeginVersion(ctx, "1.12.2")
	require.NoError(t, err)
	classA, err := b.InsertClass(ctx, "a")
	require.NoError(t, err)
	fieldAB, err := b.InsertField(ctx, classA, "b")
	require.NoError(t, err)
	require.NoError(t, b.RecordClassRename(ctx, naming.Spigot, classA, "EntityPlayer"))
	require.NoError(t, b.RecordFieldRename(ctx, naming.Spigot, fieldAB, "world"))
	require.NoError(t, b.Commit())

	r := newResolver(t, s, false)
	q := Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindField, Class: "a", Member: "b"}

	q.Systems = []naming.System{naming.Spigot}
	x, err := r.Resolve(ctx, q)
	require.NoError(t, err)
	require.NotNil(t, x)
	spigot := x.In(naming.Spigot)
	assert.Equal(t, "EntityPlayer", spigot.Class)
	assert.Equal(t, "world", spigot.Member.String)
	assert.True(t, spigot.Member.Valid)
	assert.Equal(t, []naming.System{naming.Obf, naming.Spigot}, x.Systems)

	q.Systems = []naming.System{naming.Srg}
	x, err = r.Resolve(ctx, q)
	require.NoError(t, err)
	require.NotNil(t, x)
	srg := x.In(naming.Srg)
	assert.Equal(t, "a", srg.Class)
	assert.False(t, srg.Member.Valid, "never renamed in srg")
	_, ok := x.Class.Name(naming.Srg)
	assert.False(t, ok)
	_, requested := x.Member[naming.Spigot]
	assert.False(t, requested, "spigot was not requested")
}

func TestLeftJoinKeepsUnrenamedSymbols(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	x, err := f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindClass, Class: "c", ReleaseID: f.release})
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, f.classC, x.BaselineID)
	assert.Equal(t, "c", name(t, x.Class, naming.Obf))
	for _, sys := range []naming.System{naming.Srg, naming.Spigot, naming.Mcp} {
		v, present := x.Class[sys]
		assert.True(t, present, sys)
		assert.False(t, v.Valid, sys)
	}
	assert.Nil(t, x.Member)

	x, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindField, Class: "c", Member: "d", ReleaseID: f.release})
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, f.fieldCD, x.BaselineID)
	assert.Equal(t, "d", name(t, x.Member, naming.Obf))
	for _, sys := range []naming.System{naming.Srg, naming.Spigot, naming.Mcp} {
		_, ok := x.Member.Name(sys)
		assert.False(t, ok, sys)
	}
}

func TestResolveMethodsBySignature(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	x, err := f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindMethod,
		Class: "a", Member: "e", Signature: "(La;)V", ReleaseID: f.release})
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, f.methodAE2, x.BaselineID)
	assert.Equal(t, "func_3_e", name(t, x.Member, naming.Srg))
	assert.Equal(t, "(L"+srgPlayer+";)V", name(t, x.Signature, naming.Srg))
	assert.Equal(t, "(L"+srgPlayer+";)V", name(t, x.Signature, naming.Mcp))
	assert.Equal(t, "(LEntityPlayer;)V", name(t, x.Signature, naming.Spigot))
	_, ok := x.Member.Name(naming.Mcp)
	assert.False(t, ok, "the release never named this overload")

	x, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Srg, Kind: mappingdb.KindMethod,
		Class: srgPlayer, Member: "func_2_e", Signature: "()V", ReleaseID: f.release})
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, f.methodAE, x.BaselineID)
	assert.Equal(t, "tick", name(t, x.Member, naming.Mcp))
	assert.Equal(t, "e", name(t, x.Member, naming.Obf))

	x, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindMethod,
		Class: "a", Member: "e", Signature: "(I)V"})
	require.NoError(t, err)
	assert.Nil(t, x, "no overload with that signature")

	_, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindMethod,
		Class: "a", Member: "e"})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)
}

func TestResolveFromDerivedSystems(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	x, err := f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Spigot, Kind: mappingdb.KindField,
		Class: "EntityPlayer", Member: "world"})
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, f.fieldAB, x.BaselineID)
	assert.Equal(t, "field_1_b", name(t, x.Member, naming.Srg))

	x, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Spigot, Kind: mappingdb.KindClass, Class: "c"})
	require.NoError(t, err)
	require.NotNil(t, x, "spigot keeps obf names for classes it never renamed")
	assert.Equal(t, f.classC, x.BaselineID)

	x, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Spigot, Kind: mappingdb.KindClass, Class: "a"})
	require.NoError(t, err)
	assert.Nil(t, x, "a is called EntityPlayer in spigot")

	x, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Mcp, Kind: mappingdb.KindField,
		Class: srgPlayer, Member: "world", ReleaseID: f.release})
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, f.fieldAB, x.BaselineID)
	assert.Equal(t, "world", name(t, x.Member, naming.Mcp))
}

func TestResolveReleaseGuards(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// Rows of an unloaded release exist but must not be resolved through.
	_, err := f.store.DB().Exec(`INSERT INTO mcp_fields(name, obf_field, mcp_version) VALUES (?, ?, ?)`, "worldObj", f.fieldAB, f.pending)
	require.NoError(t, err)

	x, err := f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindField,
		Class: "a", Member: "b", ReleaseID: f.pending})
	require.NoError(t, err)
	require.NotNil(t, x)
	_, ok := x.Member.Name(naming.Mcp)
	assert.False(t, ok)

	x, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Mcp, Kind: mappingdb.KindField,
		Class: srgPlayer, Member: "worldObj", ReleaseID: f.pending})
	require.NoError(t, err)
	assert.Nil(t, x)

	x, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindField,
		Class: "a", Member: "b"})
	require.NoError(t, err)
	_, ok = x.Member.Name(naming.Mcp)
	assert.False(t, ok, "no release, no mcp names")

	_, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Mcp, Kind: mappingdb.KindField,
		Class: srgPlayer, Member: "world"})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)

	_, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindField,
		Class: "a", Member: "b", ReleaseID: 9999})
	assert.True(t, errors.IsCode(err, errors.CodeUnknownRelease), "got %v", err)

	otherVersion, err := f.store.RegisterSoftwareVersion(ctx, "1.13")
	require.NoError(t, err)
	foreign, err := f.store.RegisterMappingRelease(ctx, otherVersion, 20180925, true)
	require.NoError(t, err)
	_, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindField,
		Class: "a", Member: "b", ReleaseID: foreign})
	assert.True(t, errors.IsCode(err, errors.CodeForeignScopeMismatch), "got %v", err)
}

func TestResolveMissingAndUnknown(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	x, err := f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindClass, Class: "zz"})
	require.NoError(t, err)
	assert.Nil(t, x)

	x, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindField, Class: "c", Member: "b"})
	require.NoError(t, err)
	assert.Nil(t, x, "b is declared by a, not c")

	_, err = f.resolver.Resolve(ctx, Query{Version: "1.14", Source: naming.Obf, Kind: mappingdb.KindClass, Class: "a"})
	assert.True(t, errors.IsCode(err, errors.CodeUnknownVersion), "got %v", err)

	_, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: "yarn", Kind: mappingdb.KindClass, Class: "a"})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)
}

func TestResolveAmbiguousSourceName(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	b, err := f.store.ExtendVersion(ctx, f.version.ID)
	require.NoError(t, err)
	x1, err := b.InsertClass(ctx, "x")
	require.NoError(t, err)
	x2, err := b.InsertClass(ctx, "y")
	require.NoError(t, err)
	require.NoError(t, b.RecordClassRename(ctx, naming.Spigot, x1, "Duplicate"))
	require.NoError(t, b.RecordClassRename(ctx, naming.Spigot, x2, "Duplicate"))
	require.NoError(t, b.Commit())

	_, err = f.resolver.Resolve(ctx, Query{Version: "1.12.2", Source: naming.Spigot, Kind: mappingdb.KindClass, Class: "Duplicate"})
	assert.True(t, errors.IsCode(err, errors.CodeAmbiguousMapping), "got %v", err)
}

func TestResolveByBaselineID(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	x, err := f.resolver.ResolveFieldID(ctx, f.fieldAB, 0, naming.Spigot)
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, "world", name(t, x.Member, naming.Spigot))
	assert.Equal(t, []naming.System{naming.Obf, naming.Spigot}, x.Systems)

	x, err = f.resolver.ResolveMethodID(ctx, f.methodAE, f.release)
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, "tick", name(t, x.Member, naming.Mcp))
	assert.Equal(t, "()V", name(t, x.Signature, naming.Obf))

	x, err = f.resolver.ResolveClassID(ctx, f.classA, 0)
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, srgPlayer, name(t, x.Class, naming.Mcp))

	x, err = f.resolver.ResolveClassID(ctx, 9999, 0)
	require.NoError(t, err)
	assert.Nil(t, x)

	// An unknown release fails the same way for present and absent rows.
	_, err = f.resolver.ResolveFieldID(ctx, f.fieldAB, 4242)
	assert.True(t, errors.IsCode(err, errors.CodeUnknownRelease), "got %v", err)
	_, err = f.resolver.ResolveFieldID(ctx, 9999, 4242)
	assert.True(t, errors.IsCode(err, errors.CodeUnknownRelease), "got %v", err)
}

func TestResolverCacheFollowsWrites(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	q := Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindField, Class: "c", Member: "d"}

	x, err := f.resolver.Resolve(ctx, q)
	require.NoError(t, err)
	_, ok := x.Member.Name(naming.Spigot)
	assert.False(t, ok)
	assert.Equal(t, 1, f.resolver.CachedEntries())

	// Mutating a returned result must not leak into the cache.
	x.Member[naming.Spigot] = x.Member[naming.Obf]
	x, err = f.resolver.Resolve(ctx, q)
	require.NoError(t, err)
	_, ok = x.Member.Name(naming.Spigot)
	assert.False(t, ok)

	b, err := f.store.ExtendVersion(ctx, f.version.ID)
	require.NoError(t, err)
	require.NoError(t, b.RecordFieldRename(ctx, naming.Spigot, f.fieldCD, "distance"))
	require.NoError(t, b.Commit())

	x, err = f.resolver.Resolve(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "distance", name(t, x.Member, naming.Spigot))

	missing := Query{Version: "1.12.2", Source: naming.Obf, Kind: mappingdb.KindClass, Class: "zz"}
	x, err = f.resolver.Resolve(ctx, missing)
	require.NoError(t, err)
	assert.Nil(t, x)
	x, err = f.resolver.Resolve(ctx, missing)
	require.NoError(t, err)
	assert.Nil(t, x, "cached misses stay misses")

	f.resolver.Purge()
	assert.Zero(t, f.resolver.CachedEntries())
}

func TestSearch(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	found, err := f.resolver.Search(ctx, SearchQuery{Version: "1.12.2", System: naming.Srg, Pattern: "net/**/Entity*"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, f.classA, found[0].BaselineID)
	assert.Equal(t, "EntityPlayer", name(t, found[0].Class, naming.Spigot))

	found, err = f.resolver.Search(ctx, SearchQuery{Version: "1.12.2", System: naming.Obf, Pattern: "*"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, f.classA, found[0].BaselineID)
	assert.Equal(t, f.classC, found[1].BaselineID)

	found, err = f.resolver.Search(ctx, SearchQuery{Version: "1.12.2", System: naming.Spigot, Pattern: "*", Limit: 1})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, f.classA, found[0].BaselineID, "EntityPlayer sorts before c")

	found, err = f.resolver.Search(ctx, SearchQuery{Version: "1.12.2", System: naming.Spigot, Pattern: "Nothing*"})
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = f.resolver.Search(ctx, SearchQuery{Version: "1.12.2", System: naming.Obf, Pattern: "[a"})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)
}

func TestSearchBeyondHostParameterLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("loads 33000 classes")
	}
	ctx := context.Background()
	s := openStore(t)
	b, err := s.BeginVersion(ctx, "1.16.5")
	require.NoError(t, err)
	defer b.Rollback()
	const classes = 33000
	for i := 0; i < classes; i++ {
		_, err := b.InsertClass(ctx, fmt.Sprintf("k%05d", i))
		require.NoError(t, err)
	}
	require.NoError(t, b.Commit())

	r, err := New(s, Options{SearchLimit: 40000})
	require.NoError(t, err)
	found, err := r.Search(ctx, SearchQuery{Version: "1.16.5", System: naming.Obf, Pattern: "k*"})
	require.NoError(t, err)
	require.Len(t, found, classes)
	assert.Equal(t, "k00000", name(t, found[0].Class, naming.Obf))
	assert.Equal(t, fmt.Sprintf("k%05d", searchBatch), name(t, found[searchBatch].Class, naming.Obf))
	assert.Equal(t, fmt.Sprintf("k%05d", classes-1), name(t, found[classes-1].Class, naming.Obf))
}

func export(t *testing.T, f *fixture, target string, releaseID int64) (string, ExportStats) {
	t.Helper()
	tgt, err := naming.ParseTarget(target)
	require.NoError(t, err)
	var buf bytes.Buffer
	stats, err := f.resolver.Export(context.Background(), &buf, ExportQuery{Version: "1.12.2", Target: tgt, ReleaseID: releaseID})
	require.NoError(t, err)
	return buf.String(), stats
}

func TestExport(t *testing.T) {
	f := newFixture(t, false)

	out, stats := export(t, f, "obf2spigot", 0)
	assert.Equal(t, "CL: a EntityPlayer\nFD: a/b EntityPlayer/world\n", out)
	assert.Equal(t, ExportStats{Classes: 1, Fields: 1}, stats)

	out, _ = export(t, f, "obf2srg-classes", 0)
	assert.Equal(t, "CL: a "+srgPlayer+"\n", out)

	out, stats = export(t, f, "srg2mcp", f.release)
	assert.Equal(t,
		"FD: "+srgPlayer+"/field_1_b "+srgPlayer+"/world\n"+
			"MD: "+srgPlayer+"/func_2_e ()V "+srgPlayer+"/tick ()V\n",
		out)
	assert.Equal(t, ExportStats{Fields: 1, Methods: 1}, stats)

	out, _ = export(t, f, "spigot2mcp-onlyobf", f.release)
	assert.Equal(t,
		"MD: EntityPlayer/e ()V "+srgPlayer+"/tick ()V\n"+
			"MD: EntityPlayer/e (LEntityPlayer;)V "+srgPlayer+"/func_3_e (L"+srgPlayer+";)V\n",
		out)

	out, _ = export(t, f, "spigot2obf-members", 0)
	assert.Equal(t, "FD: EntityPlayer/world a/b\n", out)
}

func TestExportNeedsLoadedRelease(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tgt, err := naming.ParseTarget("obf2mcp")
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = f.resolver.Export(ctx, &buf, ExportQuery{Version: "1.12.2", Target: tgt})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)

	_, err = f.resolver.Export(ctx, &buf, ExportQuery{Version: "1.12.2", Target: tgt, ReleaseID: f.pending})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)
	assert.Empty(t, buf.String())
}
