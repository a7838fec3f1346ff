package escrow

import (
	"fmt"
	"sort"
)

// Registry maps provider names to adapters and records which one is the
// default and which one serves high-risk transactions.
type Registry struct {
	providers   map[string]Provider
	defaultName string
	highRisk    string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// SetDefault names the provider used when nothing else applies.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("default provider %q is not registered", name)
	}
	r.defaultName = name
	return nil
}

// SetHighRisk names the provider preferred for high and critical risk.
func (r *Registry) SetHighRisk(name string) error {
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("high-risk provider %q is not registered", name)
	}
	r.highRisk = name
	return nil
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Default() (Provider, bool) {
	if r.defaultName == "" {
		return nil, false
	}
	return r.Get(r.defaultName)
}

func (r *Registry) HighRisk() (Provider, bool) {
	if r.highRisk == "" {
		return nil, false
	}
	return r.Get(r.highRisk)
}

func (r *Registry) IsHighRisk(name string) bool {
	return r.highRisk != "" && r.highRisk == name
}

// Names returns registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByReference returns the provider whose id format matches ref. Matching is
// attempted in name order so results are stable.
func (r *Registry) ByReference(ref string) (Provider, bool) {
	for _, name := range r.Names() {
		if p := r.providers[name]; p.OwnsReference(ref) {
			return p, true
		}
	}
	return nil, false
}
