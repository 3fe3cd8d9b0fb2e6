// Package packager consolidates the build artifacts of a release job.
//
// It locates the compiled binary for the target triplet, bundles it with the
// configured auxiliary files into a flat zip archive in the build root and
// reports the archive name, size and SHA-512 checksum. The archive is written
// atomically through go-update, and a PID marker keeps two jobs sharing a
// workspace from writing the same archive at once.
package packager
