package keyframe

import (
	"fmt"
	"strings"
)

// Strategy selects how densely the builder retains keyframes and how large
// its scan windows are.
type Strategy int

const (
	StrategyFull Strategy = iota
	StrategySparse
	StrategyAdaptive
	StrategyHierarchical
)

// Scan window sizes per strategy
const (
	fullWindowSize         = 64 * 1024
	sparseWindowSize       = 128 * 1024
	adaptiveWindowSize     = 96 * 1024
	hierarchicalWindowSize = 32 * 1024
)

// MaxWindowSize is the largest scan window any strategy uses
const MaxWindowSize = sparseWindowSize

func (s Strategy) String() string {
	switch s {
	case StrategyFull:
		return "full"
	case StrategySparse:
		return "sparse"
	case StrategyAdaptive:
		return "adaptive"
	case StrategyHierarchical:
		return "hierarchical"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a strategy name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "full":
		return StrategyFull, nil
	case "sparse":
		return StrategySparse, nil
	case "adaptive":
		return StrategyAdaptive, nil
	case "hierarchical":
		return StrategyHierarchical, nil
	default:
		return StrategyFull, fmt.Errorf("unknown optimization strategy %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// WindowSize returns the scan buffer size used with this strategy.
func (s Strategy) WindowSize() int {
	switch s {
	case StrategySparse:
		return sparseWindowSize
	case StrategyAdaptive:
		return adaptiveWindowSize
	case StrategyHierarchical:
		return hierarchicalWindowSize
	default:
		return fullWindowSize
	}
}

// MemoryOptimized reports whether the strategy drops keyframes to save memory.
func (s Strategy) MemoryOptimized() bool {
	return s != StrategyFull
}

// StrategyForMemoryLimit maps a memory budget in megabytes to a strategy.
func StrategyForMemoryLimit(limitMB int) Strategy {
	switch {
	case limitMB >= 50:
		return StrategyFull
	case limitMB >= 20:
		return StrategyAdaptive
	case limitMB >= 10:
		return StrategySparse
	default:
		return StrategyHierarchical
	}
}
