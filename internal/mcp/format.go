package mcp

import (
	"fmt"
	"strings"
)

// FormatMatches renders search output as markdown for clients that show
// text content.
func FormatMatches(in SearchInput, out *SearchOutput) string {
	target := in.OwnerType
	if in.Field != "" {
		target += "." + in.Field
	}

	var sb strings.Builder
	if out.Partial {
		sb.WriteString("> Index is still being built; results may be incomplete.\n\n")
	}
	if len(out.Results) == 0 {
		fmt.Fprintf(&sb, "No matches for %q in %s", in.Query, target)
		return sb.String()
	}

	fmt.Fprintf(&sb, "## Matches for %q in %s\n\n", in.Query, target)
	sb.WriteString("| # | Owner | Score | Shared trigrams |\n")
	sb.WriteString("|---|-------|-------|-----------------|\n")
	for i, r := range out.Results {
		fmt.Fprintf(&sb, "| %d | `%s` | %.4f | %d |\n", in.Offset+i+1, escapeCell(r.OwnerID), r.Score, r.Matched)
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
