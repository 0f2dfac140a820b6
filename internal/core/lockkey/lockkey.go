// Package lockkey names the critical sections of the posting engine.
// Two operations serialize exactly when they share a key.
package lockkey

import (
	"sort"
	"strings"

	"millstock/internal/core/id"
)

func Batch(batchID id.ID) string     { return "batch:" + batchID.String() }
func Account(accountID id.ID) string { return "account:" + accountID.String() }
func Order(orderID id.ID) string     { return "order:" + orderID.String() }

// BatchCode serializes creation of a batch that may not exist yet.
func BatchCode(colorID id.ID, code string) string {
	return "batch-code:" + colorID.String() + "/" + strings.TrimSpace(code)
}

// Normalize returns the distinct non-empty keys, sorted. Acquiring keys in
// this order keeps two multi-key operations from deadlocking.
func Normalize(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
