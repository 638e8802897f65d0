package enrich

// fillGaps deep-merges the supplementary record into the working result.
// Supplementary values only fill gaps — a populated destination field is
// never overwritten. Nested objects are merged recursively.
func fillGaps(dst map[string]any, src map[string]any) {
	for key, sv := range src {
		dv, exists := dst[key]
		if !exists || isEmpty(dv) {
			dst[key] = sv
			continue
		}
		dm, dok := dv.(map[string]any)
		sm, sok := sv.(map[string]any)
		if dok && sok {
			fillGaps(dm, sm)
		}
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
