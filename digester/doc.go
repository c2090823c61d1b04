// Package digester computes SHA256 digests of files and in-memory
// content. The template engine keys compiled programs by content digest
// and skips rewriting outputs whose digest did not change.
package digester
