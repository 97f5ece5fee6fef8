package health

import (
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	sentinels := map[string]error{
		"ErrCheckFailed":     ErrCheckFailed,
		"ErrCheckTimeout":    ErrCheckTimeout,
		"ErrCheckerNotFound": ErrCheckerNotFound,
		"ErrNoCheckers":      ErrNoCheckers,
	}

	seen := map[string]string{}
	for name, err := range sentinels {
		msg := err.Error()
		if !strings.HasPrefix(msg, "health: ") {
			t.Errorf("%s = %q, want the package prefix", name, msg)
		}
		if prev, dup := seen[msg]; dup {
			t.Errorf("%s and %s share the message %q", name, prev, msg)
		}
		seen[msg] = name
	}
}
