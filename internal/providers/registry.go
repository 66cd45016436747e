package providers

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Registry is the static, configuration-ordered provider catalogue.
// It is read-only after NewRegistry returns.
type Registry struct {
	ordered []Provider
	byName  map[string]Provider
}

// NewRegistry builds one provider per config entry, in order.
func NewRegistry(cfgs []Config, hc *http.Client) (*Registry, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	r := &Registry{byName: make(map[string]Provider, len(cfgs))}
	for _, c := range cfgs {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("providers: empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("providers: duplicate name %q", name)
		}
		var p Provider
		switch c.Kind {
		case KindOIDC:
			p = NewOIDCProvider(c, hc)
		case KindOAuth:
			op, err := NewOAuthProvider(c, hc)
			if err != nil {
				return nil, err
			}
			p = op
		default:
			return nil, fmt.Errorf("%w: %q (provider %s)", ErrUnknownKind, c.Kind, name)
		}
		r.ordered = append(r.ordered, p)
		r.byName[name] = p
	}
	return r, nil
}

// Get returns the provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Has reports whether name is configured.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// All returns providers in configuration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns provider names in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.ordered))
	for _, p := range r.ordered {
		out = append(out, p.Name())
	}
	return out
}
