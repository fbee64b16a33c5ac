package config

import (
	"fmt"
	"net"

	"github.com/markdingo/dnsbench/internal/model"
)

// SelectResolvers implements spec.md §4.7's "resolver selection for a run":
// default sets for quick/full, or explicit validation for custom.
func (s *Store) SelectResolvers(kind model.RunKind, explicit []model.Resolver) ([]model.Resolver, error) {
	switch kind {
	case model.KindQuick:
		return s.quickSet(), nil
	case model.KindFull:
		return s.fullSet(), nil
	case model.KindCustom:
		if len(explicit) == 0 {
			return nil, fmt.Errorf("config: custom run requires a non-empty resolver list")
		}
		for _, r := range explicit {
			if net.ParseIP(r.Address) == nil {
				return nil, fmt.Errorf("config: resolver address %q is not a valid IP literal", r.Address)
			}
		}
		return explicit, nil
	default:
		return nil, fmt.Errorf("config: unknown run kind %q", kind)
	}
}

func (s *Store) enabledLocalAsResolvers() []model.Resolver {
	var out []model.Resolver
	for _, local := range s.LocalResolvers().Servers {
		if !local.Enabled {
			continue
		}
		out = append(out, model.Resolver{
			Address: local.Address, DisplayName: local.Address,
			Origin: model.OriginLocal, Enabled: true,
		})
	}
	return out
}

func (s *Store) enabledPublic() []model.Resolver {
	var out []model.Resolver
	for _, r := range s.PublicResolvers().Servers {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// quickSet is all enabled local resolvers union the first three enabled
// public resolvers in persisted order.
func (s *Store) quickSet() []model.Resolver {
	out := s.enabledLocalAsResolvers()
	public := s.enabledPublic()
	if len(public) > 3 {
		public = public[:3]
	}
	return append(out, public...)
}

// fullSet is all enabled local plus all enabled public resolvers.
func (s *Store) fullSet() []model.Resolver {
	out := s.enabledLocalAsResolvers()
	return append(out, s.enabledPublic()...)
}
