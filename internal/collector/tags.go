package collector

import "strings"

// fieldTag is the parsed form of one `orm:"..."` struct tag. Tags are a
// comma-separated list of either bare flags ("pk", "filterable",
// "deprecated", "aggregate", "belongs_to", ...) or key=value pairs
// ("column=email", "type=varchar", "length=255", "fk=user_id").
type fieldTag struct {
	flags map[string]bool
	kv    map[string]string
}

func parseTag(raw string) fieldTag {
	ft := fieldTag{flags: map[string]bool{}, kv: map[string]string{}}
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "-" {
			continue
		}
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			key := strings.TrimSpace(part[:idx])
			val := strings.TrimSpace(part[idx+1:])
			ft.kv[key] = val
		} else {
			ft.flags[part] = true
		}
	}
	return ft
}

func (ft fieldTag) has(flag string) bool { return ft.flags[flag] }

func (ft fieldTag) get(key string) (string, bool) {
	v, ok := ft.kv[key]
	return v, ok
}

func (ft fieldTag) getOr(key, fallback string) string {
	if v, ok := ft.kv[key]; ok {
		return v
	}
	return fallback
}

func (ft fieldTag) getInt(key string) (int, bool) {
	v, ok := ft.kv[key]
	if !ok {
		return 0, false
	}
	n := 0
	neg := false
	i := 0
	if len(v) > 0 && v[0] == '-' {
		neg = true
		i = 1
	}
	if i >= len(v) {
		return 0, false
	}
	for ; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, false
		}
		n = n*10 + int(v[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

// isRelationFlag reports whether any of the four relation-kind flags are
// present on this tag, meaning the field declares a relation rather than
// a column.
func (ft fieldTag) isRelationFlag() bool {
	return ft.has("belongs_to") || ft.has("has_many") || ft.has("one_to_one") || ft.has("many_to_many")
}

// toSnakeCase converts an exported Go field name ("UserID") to the
// default DB column name ("user_id") used when no explicit `column=`
// override is present.
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if prevLower || (nextLower && runes[i-1] >= 'A' && runes[i-1] <= 'Z') {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
