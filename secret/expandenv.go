package secret

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands $VAR and ${VAR} in s the way os.ExpandEnv
// does, except that a braced variable absent from the environment is
// an error instead of a silent empty string. A literal dollar is
// written $$.
func ExpandEnvStrict(s string) (string, error) {
	const escapedDollar = "\x00gateops-dollar\x00"
	s = strings.ReplaceAll(s, "$$", escapedDollar)

	var missing []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		name := match[1]
		if _, ok := os.LookupEnv(name); !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return strings.ReplaceAll(os.ExpandEnv(s), escapedDollar, "$"), nil
}
