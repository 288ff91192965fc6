package metadata

import (
	"reflect"
	"regexp"
	"sync"
)

// IdentifierPattern is the regex every table and column name must match.
// Enforcing it at collection time eliminates identifier injection at the
// schema boundary (spec.md §6).
var IdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DeprecationSentinel is the exact string written to a column or table
// comment during phase one of a two-phase drop (spec.md §4.4).
const DeprecationSentinel = "SEMITEXA_DEPRECATED"

// Resource is the marker interface every annotated type must implement so
// the collector can discover it. TableName returns the DB-facing table
// name declared on the embedded Table marker.
type Resource interface {
	TableName() string
}

// DomainMappable is implemented by resources that declare `mapTo` — the
// streaming facade (§4.5) calls ToDomain instead of returning the raw
// resource when this interface is satisfied.
type DomainMappable interface {
	ToDomain() any
}

// Defaultable is implemented by resources whose type exposes a seed/
// default factory consumed by the seed runner (§4.6).
type Defaultable interface {
	Defaults() []any
}

// ResourceMetadata is the process-wide, lazily built, per-type cache
// described in spec.md §3 and §9: table name, PK column/property, the
// filterable property→column map, and the relation list. It is built once
// behind a one-shot initializer and never invalidated.
type ResourceMetadata struct {
	Type               reflect.Type
	Table              *TableDefinition
	PKColumn           string
	PKProperty         string
	FilterableColumns  map[string]string // property -> column
	Relations          map[string]*RelationMeta
	ColumnByDBName     map[string]*ColumnDefinition
	FieldIndexByColumn map[string][]int // DB column -> reflect.StructField index path
	FieldIndexByProp   map[string][]int
}

var (
	cacheMu sync.Mutex
	cache   = map[reflect.Type]*ResourceMetadata{}
	once    = map[reflect.Type]*sync.Once{}
)

// GetOrBuild returns the cached ResourceMetadata for t, building it with
// build exactly once even under concurrent callers (spec.md §5: "a
// one-shot initializer per type").
func GetOrBuild(t reflect.Type, build func() *ResourceMetadata) *ResourceMetadata {
	cacheMu.Lock()
	o, ok := once[t]
	if !ok {
		o = &sync.Once{}
		once[t] = o
	}
	cacheMu.Unlock()

	o.Do(func() {
		rm := build()
		cacheMu.Lock()
		cache[t] = rm
		cacheMu.Unlock()
	})

	cacheMu.Lock()
	defer cacheMu.Unlock()
	return cache[t]
}

// Lookup returns the cached metadata for t if it has already been built,
// without constructing it.
func Lookup(t reflect.Type) (*ResourceMetadata, bool) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	rm, ok := cache[t]
	return rm, ok
}

// ResetCacheForTests clears the process-wide cache. Production code must
// never call this — it exists only so tests can exercise collection
// against fresh types without cross-test interference.
func ResetCacheForTests() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[reflect.Type]*ResourceMetadata{}
	once = map[reflect.Type]*sync.Once{}
}
