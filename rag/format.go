package rag

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Format renders matches into a single context block. Each match starts with
// its Problem and Solution lines, followed by the remaining metadata fields in
// lexicographic key order. Metadata keys are matched case-insensitively.
func Format(matches []Match) string {
	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = formatMetadata(lowerKeys(m.Metadata))
	}
	return strings.Join(blocks, "\n")
}

// lowerKeys folds keys to lower case. When keys collide, an already lower-case
// key wins, otherwise the lexicographically smallest key does.
func lowerKeys(metadata map[string]any) map[string]any {
	lowered := make(map[string]any, len(metadata))
	for _, k := range slices.Sorted(maps.Keys(metadata)) {
		lk := strings.ToLower(k)
		if _, exists := lowered[lk]; exists && k != lk {
			continue
		}
		lowered[lk] = metadata[k]
	}
	return lowered
}

func formatMetadata(metadata map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Problem: %s\n", formatValue(metadata["problem"]))
	fmt.Fprintf(&sb, "Solution: %s\n", formatValue(metadata["solution"]))

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		if k == "problem" || k == "solution" {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", titleCase(k), formatValue(metadata[k]))
	}
	return sb.String()
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// titleCase converts snake_case keys to "Snake Case".
func titleCase(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
