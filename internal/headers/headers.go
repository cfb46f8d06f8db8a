// Package headers turns raw header rows into column names: optional
// normalisation, alias mapping onto standard names, and de-duplication of
// repeated names within one file.
package headers

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mapping maps normalised aliases onto standard column names.
//
// The file format is a YAML (or JSON, which YAML accepts) document whose keys
// are standard names and whose values are alias lists:
//
//	posting_date: [Posting Date, Post Date, Date]
//	amount:       [Amount, Transaction Amount]
type Mapping struct {
	aliases map[string]string
}

// LoadMapping reads a mapping file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("header map: %w", err)
	}
	m, err := ParseMapping(data)
	if err != nil {
		return nil, fmt.Errorf("header map %s: %w", path, err)
	}
	return m, nil
}

// ParseMapping decodes a mapping document. An alias claimed by two standard
// names is an error.
func ParseMapping(data []byte) (*Mapping, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid header map: %w", err)
	}

	// Sorted so conflict errors are deterministic.
	standards := make([]string, 0, len(raw))
	for std := range raw {
		standards = append(standards, std)
	}
	sort.Strings(standards)

	m := &Mapping{aliases: make(map[string]string)}
	for _, std := range standards {
		if strings.TrimSpace(std) == "" {
			return nil, fmt.Errorf("invalid header map: empty standard name")
		}
		// A standard name always maps to itself.
		all := append([]string{std}, raw[std]...)
		for _, alias := range all {
			key := Normalize(alias)
			if key == "" {
				continue
			}
			if prev, ok := m.aliases[key]; ok && prev != std {
				return nil, fmt.Errorf("invalid header map: alias %q maps to both %q and %q", alias, prev, std)
			}
			m.aliases[key] = std
		}
	}
	return m, nil
}

// Lookup returns the standard name for a header, if any.
func (m *Mapping) Lookup(header string) (string, bool) {
	if m == nil {
		return "", false
	}
	std, ok := m.aliases[Normalize(header)]
	return std, ok
}

// Len returns the number of aliases known to the mapping.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.aliases)
}

// Normalize lowercases a header and removes every space, so "Posting Date"
// and "postingdate" compare equal.
func Normalize(h string) string {
	return strings.ToLower(strings.ReplaceAll(Clean(h), " ", ""))
}

// Clean strips artifacts spreadsheet exports leave around header cells:
// surrounding whitespace, a stray BOM, and Excel's ="..." text wrapper.
func Clean(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(h)
	if strings.HasPrefix(h, `="`) && strings.HasSuffix(h, `"`) && len(h) >= 3 {
		h = h[2 : len(h)-1]
	}
	return h
}

// Resolver produces the column names for one header row.
type Resolver struct {
	// Mapping, when set, renames aliases to their standard names.
	Mapping *Mapping
	// Normalize lowercases and strips spaces from names that the mapping
	// does not cover.
	Normalize bool
}

// Resolve returns the column names for a header row. Names are left exactly
// as written unless the resolver has a mapping or normalisation enabled. A
// name that repeats within the row gets a numeric suffix: a, a_1, a_2.
func (r Resolver) Resolve(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))

	for i, h := range header {
		name := h
		if std, ok := r.Mapping.Lookup(h); ok {
			name = std
		} else if r.Normalize {
			name = Normalize(h)
		}

		if seen[name] {
			name = uniqueName(name, seen)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

func uniqueName(base string, seen map[string]bool) string {
	for n := 1; ; n++ {
		candidate := base + "_" + strconv.Itoa(n)
		if !seen[candidate] {
			return candidate
		}
	}
}
