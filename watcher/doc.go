// Package watcher reports changes to a set of files, grouping bursts of
// filesystem events into one notification. The template CLI uses it to
// re-render when the template, its includes or its data files change.
package watcher
