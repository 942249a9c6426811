package graph

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports a provider that requires its own key,
// directly or transitively. It is raised during route registration, never
// at request time.
type CircularDependencyError struct {
	Key  string
	Path []string
}

func (e *CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected:\n\n")

	if len(e.Path) == 0 {
		b.WriteString(fmt.Sprintf("    %s\n", e.Key))
		b.WriteString("      ↓\n")
		b.WriteString(fmt.Sprintf("    %s (cycle)\n", e.Key))
	} else {
		for i, key := range e.Path {
			b.WriteString(fmt.Sprintf("    %s\n", key))
			if i < len(e.Path)-1 {
				b.WriteString("      ↓\n")
			}
		}
		b.WriteString("      ↓\n")
		b.WriteString(fmt.Sprintf("    %s (cycle)\n", e.Path[0]))
	}

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Split the provider so the shared part has no back-reference\n")
	b.WriteString("  • Resolve the inner value lazily inside the provider body\n")
	b.WriteString("  • Restructure to remove the circular relationship\n")

	return b.String()
}

// MissingProviderError reports a dependency key that has no registered
// provider.
type MissingProviderError struct {
	Key string
}

func (e *MissingProviderError) Error() string {
	return fmt.Sprintf("no provider registered for dependency key %q", e.Key)
}
