// Package normalisers provides the NormaliserRegistry and the implementations
// of the Normaliser interface for each supported document format. Each
// normaliser knows how to extract text content from a specific MIME type.
//
// Normalisers are registered with the Registry at startup; see Default.
package normalisers
