package sysinfo

import "strings"

// parseListBlocks parses "Key=Value" list output, the format wmic emits
// with /format:list. Blocks are separated by blank lines; a block with
// no recognised keys is dropped.
func parseListBlocks(out string) []map[string]string {
	var blocks []map[string]string
	current := map[string]string{}

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, current)
			current = map[string]string{}
		}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		current[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	flush()
	return blocks
}

// listValues extracts one key from every block, skipping empties.
func listValues(blocks []map[string]string, key string) []string {
	var values []string
	for _, block := range blocks {
		if v := block[key]; v != "" {
			values = append(values, v)
		}
	}
	return values
}
