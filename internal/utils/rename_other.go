//go:build !linux

package utils

// renameNoReplace renames src to dst and fails with EEXIST when dst exists
func renameNoReplace(src, dst string) error {
	return linkAndRemove(src, dst)
}
