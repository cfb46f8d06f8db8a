package merge

import "fmt"

// Schema is the ordered column list of one input or of the output.
type Schema []string

// Union returns the ordered union of schemas in first-seen order,
// de-duplicated by exact name.
func Union(schemas []Schema) Schema {
	seen := make(map[string]bool)
	var out Schema
	for _, s := range schemas {
		for _, col := range s {
			if seen[col] {
				continue
			}
			seen[col] = true
			out = append(out, col)
		}
	}
	return out
}

// Missing returns the columns of s that are absent from of, in s's order.
func (s Schema) Missing(of Schema) []string {
	have := make(map[string]bool, len(of))
	for _, col := range of {
		have[col] = true
	}
	var missing []string
	for _, col := range s {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// Positions returns, for each column of unified, its index in s or -1.
func (s Schema) Positions(unified Schema) []int {
	idx := make(map[string]int, len(s))
	for i, col := range s {
		if _, dup := idx[col]; !dup {
			idx[col] = i
		}
	}
	pos := make([]int, len(unified))
	for i, col := range unified {
		p, ok := idx[col]
		if !ok {
			p = -1
		}
		pos[i] = p
	}
	return pos
}

// Project writes row onto the unified layout described by positions, reusing
// dst when it has room.
func Project(dst []string, row []string, positions []int, fill string) []string {
	dst = dst[:0]
	for _, p := range positions {
		if p >= 0 && p < len(row) {
			dst = append(dst, row[p])
		} else {
			dst = append(dst, fill)
		}
	}
	return dst
}

// unify computes the output schema. In strict mode the reference is the first
// input with a non-empty header and every other header must be a subset of it.
func unify(inputs []InputReport, strict bool) (Schema, error) {
	schemas := make([]Schema, len(inputs))
	for i, in := range inputs {
		schemas[i] = in.Columns
	}
	if !strict {
		return Union(schemas), nil
	}

	ref := -1
	for i, s := range schemas {
		if len(s) > 0 {
			ref = i
			break
		}
	}
	if ref < 0 {
		return nil, nil
	}
	for i, s := range schemas {
		if extra := s.Missing(schemas[ref]); len(extra) > 0 {
			return nil, &Error{
				Kind:   KindHeaderConflict,
				Source: inputs[i].Name,
				Err:    fmt.Errorf("columns %q are not in the header of %s", extra, inputs[ref].Name),
			}
		}
	}
	return append(Schema(nil), schemas[ref]...), nil
}
