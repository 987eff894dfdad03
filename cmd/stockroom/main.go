package main

import (
	"os"
	"strings"

	"stockroom-cli/internal/cli"
)

// rewriteShorthandArgs makes `stockroom +<name>` and `stockroom -- -<name>`
// quick adjustments: they expand to `items add <name>` and
// `items remove <name>`. Persistent flags before the token are kept.
func rewriteShorthandArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}
	valueFlags := map[string]bool{
		"--dir":    true,
		"--config": true,
		"--store":  true,
		"--actor":  true,
		"--format": true,
	}

	afterDashes := false
	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" && !afterDashes {
			afterDashes = true
			continue
		}
		if !afterDashes && strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}

		var sub string
		switch {
		case strings.HasPrefix(a, "+") && len(a) > 1:
			sub = "add"
		case afterDashes && strings.HasPrefix(a, "-") && len(a) > 1:
			sub = "remove"
		default:
			return argv
		}
		out := make([]string, 0, len(argv)+2)
		for j, arg := range argv[:i] {
			if j > 0 && arg == "--" {
				continue
			}
			out = append(out, arg)
		}
		out = append(out, "items", sub, a[1:])
		out = append(out, argv[i+1:]...)
		return out
	}
	return argv
}

func main() {
	os.Args = rewriteShorthandArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
