package providers

import "strings"

// ProviderRef names one configured provider. KeyAlias selects the API key
// variable for hosted providers and the model for Ollama.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList reads "name[:alias]" entries separated by "|" or ",".
// Names are lower-cased, repeated entries are dropped and an empty list
// means mock.
func ParseProviderList(raw string) []ProviderRef {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' })
	out := make([]ProviderRef, 0, len(fields))
	seen := make(map[ProviderRef]bool, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		name, alias, _ := strings.Cut(f, ":")
		ref := ProviderRef{
			Name:     strings.ToLower(strings.TrimSpace(name)),
			KeyAlias: strings.TrimSpace(alias),
		}
		if ref.Name == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		ref.Raw = ref.Name
		if ref.KeyAlias != "" {
			ref.Raw += ":" + ref.KeyAlias
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
