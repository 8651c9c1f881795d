package source

import (
	"context"

	"github.com/komsit37/fv/pkg/fv/types"
)

// Source loads scenarios from a specification (e.g., filepath).
type Source interface {
	Load(ctx context.Context, spec any) ([]types.Scenario, error)
}

// Static serves scenarios held in memory; spec is ignored.
type Static []types.Scenario

func (s Static) Load(context.Context, any) ([]types.Scenario, error) {
	return append([]types.Scenario(nil), s...), nil
}
