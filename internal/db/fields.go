package db

import (
	"net/url"
	"strings"
)

// Reserved hash fields for listing documents. Both drivers store one hash
// per document: the embedding as a float32 blob, the source text, the raw
// metadata JSON, and two derived TAG fields the filter language matches
// against.
const (
	FieldText      = "__text"
	FieldVector    = "__vector"
	FieldMeta      = "__meta"
	FieldMetaKeys  = "__meta_keys"
	FieldMetaPairs = "__meta_pairs"
)

// TagSeparator joins tokens inside FieldMetaKeys and FieldMetaPairs.
const TagSeparator = ","

// KeyToken encodes a metadata key as a FieldMetaKeys token. Query-escaping
// keeps the separator and tag query syntax out of the token.
func KeyToken(key string) string {
	return url.QueryEscape(key)
}

// PairToken encodes a metadata key with its canonical value as a
// FieldMetaPairs token. The unescaped "=" never occurs inside the escaped
// halves, so the pairing is unambiguous.
func PairToken(key, canonicalValue string) string {
	return url.QueryEscape(key) + "=" + url.QueryEscape(canonicalValue)
}

// JoinTags renders tokens as a tag field value.
func JoinTags(tokens []string) string {
	return strings.Join(tokens, TagSeparator)
}

// SplitTags parses a tag field value back into tokens.
func SplitTags(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, TagSeparator)
}
