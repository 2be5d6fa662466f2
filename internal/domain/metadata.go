package domain

// TokenMetadata is display metadata for a token mint.
// An entry with empty fields is a cached miss.
type TokenMetadata struct {
	Mint     string
	Symbol   string
	Name     string
	LogoURL  string
	Decimals *int // nil when unknown
}

// IsEmpty reports whether no display field was resolved.
func (m TokenMetadata) IsEmpty() bool {
	return m.Symbol == "" && m.Name == "" && m.LogoURL == ""
}
