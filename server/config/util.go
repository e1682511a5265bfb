// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package config

import "strings"

// splitList splits a comma separated list, trimming whitespace and dropping
// empty items so trailing commas are harmless.
func splitList(s string) []string {
	items := strings.Split(s, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
