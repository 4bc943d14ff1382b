package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"schemabench/src/settings"
)

// NewStore creates the DocumentStore selected by args.Backend.
//
// Supported backends:
//
//	"mongo"  - a MongoDB deployment reached through args.URI
//	"memory" - an in-process engine, nothing survives the process
func NewStore(ctx context.Context, args *settings.Arguments, logger *zap.SugaredLogger) (DocumentStore, error) {
	switch args.Backend {
	case settings.BackendMongo:
		return NewMongoStore(ctx, args.URI, args.DatabaseName, args.StoreTimeout, logger)
	case settings.BackendMemory:
		return NewMemoryStore(logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", settings.ErrConfiguration, args.Backend)
	}
}
