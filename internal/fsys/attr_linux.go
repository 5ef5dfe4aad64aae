//go:build linux

package fsys

import (
	"bufio"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"lazytree/internal/model"
)

// Kernel pseudo filesystems are reported as system directories.
var pseudoFS = map[int64]bool{
	unix.PROC_SUPER_MAGIC:    true,
	unix.SYSFS_MAGIC:         true,
	unix.DEVPTS_SUPER_MAGIC:  true,
	unix.DEBUGFS_MAGIC:       true,
	unix.TRACEFS_MAGIC:       true,
	unix.SECURITYFS_MAGIC:    true,
	unix.CGROUP_SUPER_MAGIC:  true,
	unix.CGROUP2_SUPER_MAGIC: true,
}

func platformAttrs(path string, info fs.FileInfo) model.Attr {
	var a model.Attr
	if strings.HasPrefix(info.Name(), ".") && len(info.Name()) > 1 {
		a |= model.AttrHidden
	}
	if info.Mode().Perm()&0o222 == 0 {
		a |= model.AttrReadOnly
	}
	if info.IsDir() {
		var st unix.Statfs_t
		if err := unix.Statfs(path, &st); err == nil && pseudoFS[int64(st.Type)] {
			a |= model.AttrSystem
		}
	}
	return a
}

// platformVolumeRoots returns "/" followed by every block-device mount point.
func platformVolumeRoots() []string {
	roots := []string{"/"}
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return roots
	}
	defer f.Close()

	seen := map[string]bool{"/": true}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		mnt := unescapeMount(fields[1])
		if seen[mnt] || strings.HasPrefix(mnt, "/boot") || strings.HasPrefix(mnt, "/snap/") {
			continue
		}
		seen[mnt] = true
		roots = append(roots, mnt)
	}
	return roots
}

// unescapeMount decodes the octal escapes used in /proc/self/mounts.
func unescapeMount(s string) string {
	r := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return r.Replace(s)
}
