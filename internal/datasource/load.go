package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/vanderheijden86/eavview/pkg/debug"
	"github.com/vanderheijden86/eavview/pkg/loader"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// LoadOptions controls how a dataset is located and parsed.
type LoadOptions struct {
	Parse  loader.ParseOptions
	Logger func(msg string)
}

// Load parses the dataset at path and builds a store. Errors are always
// *model.LoadError.
func Load(ctx context.Context, path string, opts LoadOptions) (*model.Store, error) {
	src, err := SourceForPath(path)
	if err != nil {
		// Missing files and unknown extensions go through the loader so the
		// error carries the open phase.
		_, lerr := loader.LoadFromFile(path, opts.Parse)
		if lerr == nil {
			lerr = err
		}
		return nil, model.NewLoadError(path, model.PhaseOpen, lerr)
	}
	return LoadFromSource(ctx, src, opts.Parse)
}

// LoadDir discovers sources in dir, picks the best valid one and loads it.
// The chosen source is returned alongside the store.
func LoadDir(ctx context.Context, dir string, opts LoadOptions) (*model.Store, DataSource, error) {
	sources, err := DiscoverSources(ctx, DiscoveryOptions{
		DataDir:                dir,
		ValidateAfterDiscovery: true,
		Parse:                  opts.Parse,
		Logger:                 opts.Logger,
	})
	if err != nil {
		return nil, DataSource{}, model.NewLoadError(dir, model.PhaseOpen, err)
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, DataSource{}, model.NewLoadError(dir, model.PhaseOpen, err)
	}
	store, err := LoadFromSource(ctx, best, opts.Parse)
	if err != nil {
		return nil, best, err
	}
	return store, best, nil
}

// LoadFromSource loads triples from a specific DataSource, dispatching to the
// appropriate reader based on source type.
func LoadFromSource(ctx context.Context, source DataSource, parse loader.ParseOptions) (*model.Store, error) {
	start := time.Now()
	triples, err := readSourceContext(ctx, source, parse)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, model.NewLoadError(source.Path, model.PhaseParse, err)
	}
	store := model.NewStore(triples)
	debug.LogTiming(fmt.Sprintf("datasource.Load(%s)", source.Path), time.Since(start))
	return store, nil
}

func readSource(source DataSource, parse loader.ParseOptions) ([]model.Triple, error) {
	return readSourceContext(context.Background(), source, parse)
}

func readSourceContext(ctx context.Context, source DataSource, parse loader.ParseOptions) ([]model.Triple, error) {
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, model.NewLoadError(source.Path, model.PhaseOpen, err)
		}
		defer reader.Close()
		return reader.LoadTriples(ctx, parse)

	case SourceTypeCSV, SourceTypeJSONL:
		return loader.LoadFromFile(source.Path, parse)

	default:
		return nil, model.NewLoadError(source.Path, model.PhaseOpen, fmt.Errorf("unknown source type: %s", source.Type))
	}
}
