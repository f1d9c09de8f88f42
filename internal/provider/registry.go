package provider

import "fmt"

// Registry holds the providers constructed at process start. It replaces
// package-level client singletons: the synthesis engine receives a chain
// built from the registry, nothing reaches for ambient state.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Chain resolves an ordered preference list of provider names into the
// providers to try in sequence. Names without a configured provider are
// skipped; an unrecognized name is a configuration error.
func (r *Registry) Chain(names []string) ([]Provider, error) {
	known := map[string]bool{NameOpenAI: true, NameGemini: true, NameVision: true, NameLocal: true}

	var chain []Provider
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("unknown provider %q in preference order", name)
		}
		if p, ok := r.providers[name]; ok {
			chain = append(chain, p)
		}
	}
	return chain, nil
}
