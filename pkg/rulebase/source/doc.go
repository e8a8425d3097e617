// Package source supplies rule bases to the compiler and reports when they
// change.
//
// FileSource reads the rule base and taxonomy from disk and watches them
// with fsnotify, debouncing bursts of editor writes into one event.
// GitSource reads them from a clone of a Git repository and polls the
// remote for new commits. MemorySource serves tests and embedders.
package source
