package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// refScheme prefixes values that name a secret instead of containing one.
const refScheme = "secretref:"

// Resolver replaces secret references in config values with material
// fetched from registered providers. Values without a reference pass
// through untouched apart from strict environment expansion, so a
// JWKS URL and a secretref-backed signing key can live in the same
// config block.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver builds a resolver over the given providers. In strict
// mode a provider returning an empty value is an error, which catches
// an unset backing variable before it becomes an empty signing key.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider, replacing any earlier one with the same name.
func (r *Resolver) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[p.Name()] = p
}

// ResolveValue expands environment variables in value and then resolves
// any secret references, whether the whole value is a reference or one
// is embedded inside a larger string. A nil resolver only expands.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}

	if providerName, ref, ok := ParseSecretRef(expanded); ok {
		return r.lookup(ctx, providerName, ref)
	}
	return r.replaceInline(ctx, expanded)
}

// ResolveSlice resolves every element of values into a new slice.
func (r *Resolver) ResolveSlice(ctx context.Context, values []string) ([]string, error) {
	resolved := make([]string, len(values))
	var err error
	for i, v := range values {
		if resolved[i], err = r.ResolveValue(ctx, v); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// ResolveMap resolves every value of input into a new map, leaving the
// keys alone.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	resolved := make(map[string]string, len(input))
	for key, value := range input {
		replaced, err := r.ResolveValue(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", key, err)
		}
		resolved[key] = replaced
	}
	return resolved, nil
}

// ParseSecretRef splits a whole-value reference of the form
// "secretref:<provider>:<ref>" into its parts. The ref may itself
// contain colons. It reports false for anything else.
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refScheme)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// lookup fetches one secret through its named provider.
func (r *Resolver) lookup(ctx context.Context, providerName string, ref string) (string, error) {
	providerName = strings.TrimSpace(providerName)
	ref = strings.TrimSpace(ref)
	switch {
	case providerName == "":
		return "", errors.New("secret provider name is required")
	case ref == "":
		return "", errors.New("secret ref is required")
	}

	provider := r.providers[providerName]
	if provider == nil {
		return "", fmt.Errorf("secret provider %q is not registered", providerName)
	}

	value, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve %s:%s: %w", providerName, ref, err)
	}
	if r.strict && value == "" {
		return "", fmt.Errorf("secret provider %q returned empty value for %q", providerName, ref)
	}
	return value, nil
}

// Inline references stop at whitespace, so a ref embedded in a larger
// value runs to the end of its token.
var inlineRefPattern = regexp.MustCompile(`secretref:([^:\s]+):([^\s]+)`)

func (r *Resolver) replaceInline(ctx context.Context, value string) (string, error) {
	if !strings.Contains(value, refScheme) {
		return value, nil
	}

	var lookupErr error
	replaced := inlineRefPattern.ReplaceAllStringFunc(value, func(match string) string {
		if lookupErr != nil {
			return match
		}
		groups := inlineRefPattern.FindStringSubmatch(match)
		resolved, err := r.lookup(ctx, groups[1], groups[2])
		if err != nil {
			lookupErr = err
			return match
		}
		return resolved
	})
	if lookupErr != nil {
		return "", lookupErr
	}
	return replaced, nil
}
