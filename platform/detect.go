// Package platform reports the OS and desktop session the process runs in.
package platform

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

const (
	SessionWayland = "wayland"
	SessionX11     = "x11"
)

type Info struct {
	OS           string // runtime.GOOS
	Arch         string
	Session      string // wayland, x11 or "" outside linux desktops
	AppleSilicon bool
}

func (i Info) IsLinux() bool   { return i.OS == "linux" }
func (i Info) IsMacOS() bool   { return i.OS == "darwin" }
func (i Info) IsWindows() bool { return i.OS == "windows" }
func (i Info) IsWayland() bool { return i.Session == SessionWayland }

// Detect reads the platform from the runtime and the session environment.
func Detect() Info {
	return detect(runtime.GOOS, runtime.GOARCH, os.Getenv)
}

func detect(goos, goarch string, getenv func(string) string) Info {
	info := Info{OS: goos, Arch: goarch}
	info.AppleSilicon = goos == "darwin" && goarch == "arm64"
	if goos == "linux" {
		info.Session = sessionType(getenv)
	}
	return info
}

func sessionType(getenv func(string) string) string {
	switch strings.ToLower(getenv("XDG_SESSION_TYPE")) {
	case SessionWayland:
		return SessionWayland
	case SessionX11:
		return SessionX11
	}
	if getenv("WAYLAND_DISPLAY") != "" {
		return SessionWayland
	}
	if getenv("DISPLAY") != "" {
		return SessionX11
	}
	return ""
}

// LookPath is exec.LookPath, swappable in tests.
var LookPath = exec.LookPath

func HasCommand(name string) bool {
	_, err := LookPath(name)
	return err == nil
}

var uinputPaths = []string{"/dev/uinput", "/dev/input/uinput"}

// canWrite is replaced in tests.
var canWrite = func(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Warnings lists setup problems that will likely break injection. None of
// them are fatal.
func Warnings(info Info, injectBackend string) []string {
	var warns []string
	if info.IsWayland() && (injectBackend == "ydotool" || injectBackend == "auto" || injectBackend == "") && !HasCommand("ydotool") {
		warns = append(warns, "ydotool is not installed; text injection may not work on Wayland")
	}
	if info.IsLinux() && injectBackend != "ydotool" {
		writable := false
		for _, p := range uinputPaths {
			if canWrite(p) {
				writable = true
				break
			}
		}
		if !writable {
			warns = append(warns, "cannot write /dev/uinput; fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}
	return warns
}
