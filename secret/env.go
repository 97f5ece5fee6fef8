package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider resolves references against the process environment. The
// reference is the variable name: secretref:env:JWT_SIGNING_KEY.
type EnvProvider struct{}

// NewEnvProvider creates an environment-backed provider.
func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

func (p *EnvProvider) Name() string { return "env" }

// Resolve returns the variable's value. A variable that is set but
// empty resolves to the empty string; strictness is the resolver's
// concern.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	value, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", ref)
	}
	return value, nil
}

func (p *EnvProvider) Close() error { return nil }

var _ Provider = (*EnvProvider)(nil)

func init() {
	_ = DefaultRegistry.Register("env", func(_ map[string]any) (Provider, error) {
		return NewEnvProvider(), nil
	})
}
