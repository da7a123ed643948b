// Package build compiles a page tree into modules on disk.
//
// Documents are compiled concurrently with a bounded worker pool. Unchanged
// documents are skipped using the incremental cache; every other document
// goes through the loader and has its module written under the output
// directory. A failing document never prevents the others from being written.
package build
