package ports

import (
	"context"
	"io"

	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/naming"
	"mcmappings/internal/engine/resolver"
)

// VersionRegistry abstracts the software version and mapping release records.
type VersionRegistry interface {
	RegisterSoftwareVersion(ctx context.Context, name string) (int64, error)
	RegisterMappingRelease(ctx context.Context, versionID int64, value uint32, snapshot bool) (int64, error)
	DeleteSoftwareVersion(ctx context.Context, name string) error
	Version(ctx context.Context, name string) (mappingdb.SoftwareVersion, error)
	ListSoftwareVersions(ctx context.Context) ([]mappingdb.SoftwareVersion, error)
	ReleaseFor(ctx context.Context, versionID int64, v naming.McpVersion) (mappingdb.MappingRelease, error)
	ListMappingReleases(ctx context.Context, versionID int64) ([]mappingdb.MappingRelease, error)
}

// IngestionWriter abstracts the batch writers an external loader drives.
type IngestionWriter interface {
	BeginVersion(ctx context.Context, name string) (*mappingdb.VersionBatch, error)
	ExtendVersion(ctx context.Context, versionID int64) (*mappingdb.VersionBatch, error)
	BeginRelease(ctx context.Context, releaseID int64) (*mappingdb.ReleaseBatch, error)
}

// MappingStore is the full store surface used by driving adapters.
type MappingStore interface {
	VersionRegistry
	IngestionWriter
	CountBaseline(ctx context.Context, versionID int64, kind mappingdb.SymbolKind) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// CrossReferencer abstracts symbol resolution for driving adapters.
type CrossReferencer interface {
	Resolve(ctx context.Context, q resolver.Query) (*resolver.CrossReference, error)
	ResolveID(ctx context.Context, kind mappingdb.SymbolKind, baselineID, releaseID int64, systems []naming.System) (*resolver.CrossReference, error)
	Search(ctx context.Context, q resolver.SearchQuery) ([]*resolver.CrossReference, error)
	Export(ctx context.Context, w io.Writer, q resolver.ExportQuery) (resolver.ExportStats, error)
}

var (
	_ MappingStore    = (*mappingdb.Store)(nil)
	_ CrossReferencer = (*resolver.Resolver)(nil)
)
