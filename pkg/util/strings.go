package util

import "strings"

// SplitList splits a comma separated value, trims every item and drops
// empties and repeats while keeping the first-seen order.
func SplitList(s string) []string {
    return NormalizeList(strings.Split(s, ","))
}

// NormalizeList trims and dedupes values in order.
func NormalizeList(values []string) []string {
    out := make([]string, 0, len(values))
    seen := make(map[string]struct{}, len(values))
    for _, v := range values {
        v = strings.TrimSpace(v)
        if v == "" {
            continue
        }
        if _, ok := seen[v]; ok {
            continue
        }
        seen[v] = struct{}{}
        out = append(out, v)
    }
    return out
}
