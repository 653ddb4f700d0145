package ai

// Registry is the fixed, ordered set of providers known to the process.
// Order only affects how choices are presented.
type Registry struct {
	providers []Provider
}

func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Lookup finds a provider by exact name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) Providers() []Provider {
	return r.providers
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

func (r *Registry) Len() int {
	return len(r.providers)
}
