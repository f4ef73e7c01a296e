package fault

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses a single --fault spec string: "crash@S", "io_error@S", or
// "delay:R@S+D". It reports a deterministic syntax error (with the
// offending spec echoed) rather than a byte offset, since specs arrive as
// discrete CLI arguments, not a parsed file.
func Parse(spec string) (Fault, error) {
	kindPart, rest, hasAt := cut(spec, "@")
	if !hasAt {
		return Fault{}, fmt.Errorf("fault: missing '@' in %q", spec)
	}

	switch {
	case kindPart == "crash":
		step, err := parseStep(rest)
		if err != nil {
			return Fault{}, fmt.Errorf("fault %q: %w", spec, err)
		}
		return Fault{Kind: KindCrash, Step: step}, nil

	case kindPart == "io_error":
		step, err := parseStep(rest)
		if err != nil {
			return Fault{}, fmt.Errorf("fault %q: %w", spec, err)
		}
		return Fault{Kind: KindIOError, Step: step}, nil

	case strings.HasPrefix(kindPart, "delay:"):
		resource := strings.TrimPrefix(kindPart, "delay:")
		if resource == "" {
			return Fault{}, fmt.Errorf("fault %q: delay requires a resource name", spec)
		}
		stepPart, durPart, hasPlus := cut(rest, "+")
		if !hasPlus {
			return Fault{}, fmt.Errorf("fault %q: delay requires +<duration>", spec)
		}
		step, err := parseStep(stepPart)
		if err != nil {
			return Fault{}, fmt.Errorf("fault %q: %w", spec, err)
		}
		dur, err := strconv.ParseInt(durPart, 10, 64)
		if err != nil || dur <= 0 {
			return Fault{}, fmt.Errorf("fault %q: invalid duration %q", spec, durPart)
		}
		return Fault{Kind: KindDelay, Resource: resource, Step: step, Duration: dur}, nil

	default:
		return Fault{}, fmt.Errorf("fault %q: unknown kind %q", spec, kindPart)
	}
}

// ParseAll parses and normalizes a list of fault spec strings.
func ParseAll(specs []string) (*Schedule, error) {
	faults := make([]Fault, 0, len(specs))
	for _, s := range specs {
		f, err := Parse(s)
		if err != nil {
			return nil, err
		}
		faults = append(faults, f)
	}
	return Normalize(faults)
}

func parseStep(s string) (int64, error) {
	step, err := strconv.ParseInt(s, 10, 64)
	if err != nil || step <= 0 {
		return 0, fmt.Errorf("invalid step %q", s)
	}
	return step, nil
}

func cut(s, sep string) (before, after string, found bool) {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
