package schema

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kestreldb/kestrel/errors"
)

// Registry holds named schemas and a bounded validation cache. Safe for
// concurrent use: schemas are guarded by a mutex, the cache uses per-key
// atomic writes (sync.Map) and never takes a global lock on reads.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema

	cache  *validationCache
	logger *zap.SugaredLogger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger attaches a logger for debug output.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithCache overrides the default validation cache bounds.
func WithCache(cache *validationCache) Option {
	return func(r *Registry) { r.cache = cache }
}

// NewRegistry creates a registry with the built-in schemas registered.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		schemas: make(map[string]*Schema),
		cache:   NewCache(DefaultCacheTTL, DefaultCacheMaxEntries),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, s := range builtinSchemas() {
		r.Register(s.Name, s)
	}
	return r
}

// Register adds or replaces a schema. Re-registering a name replaces the
// schema and bumps its version, which also invalidates cached results for
// the old version (the version participates in the cache key).
func (r *Registry) Register(name string, schema Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()

	version := 1
	if prev, ok := r.schemas[name]; ok {
		version = prev.Version + 1
	}
	schema.Name = name
	schema.Version = version
	r.schemas[name] = &schema

	if r.logger != nil {
		r.logger.Debugw("schema registered",
			"schema", name,
			"version", version,
			"fields", len(schema.Fields),
		)
	}
}

// Get returns a registered schema by name.
func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered schema names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	return names
}

// Validate checks data against the named schema. Results may be served from
// the cache keyed by (schema, version, structural hash); a miss always
// produces the identical result to a hit. Data is never mutated.
func (r *Registry) Validate(name string, data map[string]interface{}) Result {
	schema, ok := r.Get(name)
	if !ok {
		return Result{Success: false, Errors: []FieldError{{
			Path:    "",
			Message: "unknown schema " + name,
			Code:    CodeUnknownSchema,
		}}}
	}

	key := cacheKey(schema.Name, schema.Version, structuralHash(data))
	if cached, hit := r.cache.get(key); hit {
		return cached
	}

	result := schema.validate(data)
	r.cache.put(key, result)
	return result
}

// CoerceTypes converts numeric-looking strings to numbers and "true"/"false"
// strings to booleans where the named schema expects those types. The input
// map is never modified; the coerced copy is returned.
func (r *Registry) CoerceTypes(name string, data map[string]interface{}) (map[string]interface{}, error) {
	schema, ok := r.Get(name)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "schema %s", name)
	}
	return schema.coerce(data)
}

// schemaFile is the YAML document shape accepted by LoadFile.
type schemaFile struct {
	Schemas []Schema `yaml:"schemas"`
}

// LoadFile registers additional schemas from a YAML file. Each entry needs
// a name and a fields map; registering over an existing name bumps its
// version like any other Register call.
func (r *Registry) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read schema file %s", path)
	}

	var file schemaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return errors.Wrapf(err, "parse schema file %s", path)
	}

	for _, s := range file.Schemas {
		if s.Name == "" {
			return errors.Newf("schema file %s: entry without a name", path)
		}
		r.Register(s.Name, s)
	}

	if r.logger != nil {
		r.logger.Infow("schemas loaded from file",
			"path", path,
			"count", len(file.Schemas),
		)
	}
	return nil
}
