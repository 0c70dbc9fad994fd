// Package privilege reports whether the current process has enough
// rights for complete collection. Unprivileged runs still work, but
// other users' sockets and process details may be invisible.
package privilege

import "os"

// IsElevated returns true when running as root.
func IsElevated() bool {
	return os.Getuid() == 0
}
