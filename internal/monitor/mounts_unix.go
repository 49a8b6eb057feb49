//go:build !windows

package monitor

import (
	"bufio"
	"os"
	"runtime"
	"strings"
)

// enumerateMountsOS lists mount points by reading /proc/mounts on Linux and
// by listing /Volumes on Darwin, following the same build-tag split as the
// teacher's getFreeSpace (diskspace_unix.go/diskspace_windows.go).
func enumerateMountsOS() []string {
	if runtime.GOOS == "darwin" {
		return listVolumesDarwin()
	}
	return listProcMountsLinux()
}

func listProcMountsLinux() []string {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return []string{"/"}
	}
	defer f.Close()

	var mounts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		mountPoint := fields[1]
		if strings.HasPrefix(mountPoint, "/media/") || strings.HasPrefix(mountPoint, "/mnt/") || strings.HasPrefix(mountPoint, "/run/media/") {
			mounts = append(mounts, mountPoint)
		}
	}
	return mounts
}

func listVolumesDarwin() []string {
	entries, err := os.ReadDir("/Volumes")
	if err != nil {
		return nil
	}
	var mounts []string
	for _, e := range entries {
		mounts = append(mounts, "/Volumes/"+e.Name())
	}
	return mounts
}
