package preflight

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// minFreeBytes is the smallest amount of free disk space the schedule
// database and briar account data are expected to fit in comfortably.
const minFreeBytes = 64 << 20

// CheckJava verifies the configured Java runtime is executable.
func CheckJava(javaPath string) Result {
	const name = "Java runtime"

	binary := strings.TrimSpace(javaPath)
	if binary == "" {
		binary = "java"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not found in PATH)", binary)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckHeadlessJar verifies the briar-headless jar exists and is a regular file.
func CheckHeadlessJar(jarPath string) Result {
	const name = "briar-headless jar"

	path := strings.TrimSpace(jarPath)
	if path == "" {
		return Result{Name: name, Detail: "jar_path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem holding path has a workable amount
// of free space.
func CheckDiskSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: only %d MiB free)", path, free>>20)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MiB free)", path, free>>20)}
}

// CheckAPIBind verifies the HTTP API bind address parses and names a local
// interface.
func CheckAPIBind(bind string) Result {
	const name = "API bind address"

	addr := strings.TrimSpace(bind)
	if addr == "" {
		return Result{Name: name, Detail: "api_bind not configured"}
	}
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	if tcpAddr.IP != nil && !tcpAddr.IP.IsLoopback() && !tcpAddr.IP.IsUnspecified() {
		if !localInterfaceAddr(tcpAddr.IP) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a local interface address)", addr)}
		}
	}
	return Result{Name: name, Passed: true, Detail: addr}
}

func localInterfaceAddr(ip net.IP) bool {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return true
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.Equal(ip) {
			return true
		}
	}
	return false
}
