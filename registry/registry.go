package registry

import (
	"fmt"
	"sort"

	"github.com/TEENet-io/atomic-swap/htlc"
)

// Registry maps a chain id to its adapter. It is filled at construction and
// read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	adapters map[htlc.ChainID]htlc.Adapter
}

func New(adapters ...htlc.Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[htlc.ChainID]htlc.Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("%w: nil adapter", htlc.ErrConfigInvalid)
		}
		chain := a.Chain()
		if _, ok := r.adapters[chain]; ok {
			return nil, fmt.Errorf("%w: duplicate adapter for %s", htlc.ErrConfigInvalid, chain)
		}
		r.adapters[chain] = a
	}
	return r, nil
}

func (r *Registry) Resolve(chain htlc.ChainID) (htlc.Adapter, error) {
	a, ok := r.adapters[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", htlc.ErrUnsupportedChain, chain)
	}
	return a, nil
}

// Chains returns the registered chain ids in lexical order.
func (r *Registry) Chains() []htlc.ChainID {
	chains := make([]htlc.ChainID, 0, len(r.adapters))
	for c := range r.adapters {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}
