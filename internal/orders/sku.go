package orders

import "strings"

// SKUSet is the closed catalog, loaded from config at startup.
type SKUSet map[string]struct{}

func NewSKUSet(skus []string) SKUSet {
	set := make(SKUSet, len(skus))
	for _, s := range skus {
		set[NormalizeSKU(s)] = struct{}{}
	}
	return set
}

func (s SKUSet) Contains(sku string) bool {
	_, ok := s[NormalizeSKU(sku)]
	return ok
}

func (s SKUSet) List() []string {
	out := make([]string, 0, len(s))
	for sku := range s {
		out = append(out, sku)
	}
	return out
}

// NormalizeSKU matches user input like "black l" or "Black_L" to the
// canonical COLOR_SIZE form.
func NormalizeSKU(sku string) string {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	sku = strings.ReplaceAll(sku, " ", "_")
	return sku
}
