// Package flagx pre-scans command-line arguments for the few flags that must
// be known before the cobra command tree parses the rest (the config file
// path, the .env files).
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs keeps only the allowed flags of args, together with their values.
// Both "-c value" and "--config=value" forms are recognised; a following token
// starting with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigPath returns the JSON config file named by -c/--config in args, or ""
// when none is given. The last occurrence wins.
func ConfigPath(args []string) string {
	return lookupString(args, "config", "c")
}

// EnvFiles returns the .env files named by --env-file (repeatable, comma
// separated values allowed).
func EnvFiles(args []string) []string {
	var files []string
	for _, v := range lookupAll(args, "env-file") {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				files = append(files, f)
			}
		}
	}
	return files
}

func lookupString(args []string, long, short string) string {
	var value string
	fs := flag.NewFlagSet("prescan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&value, long, "", "")
	if short != "" {
		fs.StringVar(&value, short, "", "")
	}
	allowed := []string{"-" + long, "--" + long}
	if short != "" {
		allowed = append(allowed, "-"+short, "--"+short)
	}
	_ = fs.Parse(FilterArgs(args, allowed))
	return value
}

type multiValue []string

func (m *multiValue) String() string     { return strings.Join(*m, ",") }
func (m *multiValue) Set(v string) error { *m = append(*m, v); return nil }

func lookupAll(args []string, long string) []string {
	var values multiValue
	fs := flag.NewFlagSet("prescan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Var(&values, long, "")
	_ = fs.Parse(FilterArgs(args, []string{"-" + long, "--" + long}))
	return values
}
