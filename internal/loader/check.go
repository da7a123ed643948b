package loader

import (
	"context"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/markdoc"
	"git.home.luguber.info/inful/mdocpack/internal/schema"
	"git.home.luguber.info/inful/mdocpack/internal/validation"
)

// Check parses and validates doc without gathering partials or emitting a
// module. The report is returned whenever validation ran, including when
// it found critical diagnostics.
func Check(ctx context.Context, host Host, doc Document, opts Options) (*validation.Report, error) {
	tree, err := markdoc.Parse(doc.Source)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryValidation, "failed to parse document").Fatal().Build()
	}
	schemaLoader := opts.SchemaLoader
	if schemaLoader == nil {
		schemaLoader = schema.DeclarativeLoader{}
	}
	bundle, err := schema.Locate(ctx, schema.Request{
		BaseDir:     opts.Dir,
		SchemaPath:  opts.SchemaPath,
		Custom:      opts.SchemaCustom,
		Resolver:    host.Resolver,
		Tracker:     host.Tracker,
		Loader:      schemaLoader,
		LiveTimeout: opts.LiveTimeout,
		Logger:      host.Logger,
	})
	if err != nil {
		return nil, err
	}
	return validation.Validate(tree, bundle.Config(), doc.Source, validation.Discard{})
}
