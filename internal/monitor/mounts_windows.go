//go:build windows

package monitor

import "golang.org/x/sys/windows"

// enumerateMountsOS lists drive letters present via GetLogicalDrives,
// mirroring the teacher's windows-specific getFreeSpace (diskspace_windows.go).
func enumerateMountsOS() []string {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil
	}
	var mounts []string
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) != 0 {
			letter := string(rune('A' + i))
			mounts = append(mounts, letter+`:\`)
		}
	}
	return mounts
}
