// Package file provides the file-backed configuration store.
//
// Settings live in a TOML file by default; a path ending in .yaml or .yml
// is read and written as YAML. Nested tables are flattened into dotted
// keys such as "queue.retry_limit". CONTENTINDEX_* environment variables,
// optionally loaded from a .env file, override file values without being
// written back, and Watch reloads the file when it changes on disk.
package file
