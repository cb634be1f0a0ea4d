// Package html provides a Normaliser implementation for HTML documents.
// It strips navigation, chrome and ads by tag name and by class/id/role
// patterns, then picks the main content from an ordered list of structural
// selectors before falling back to the whole body.
package html
