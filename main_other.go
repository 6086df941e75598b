//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The global hotkey backend needs the OS main thread for its event loop.
func main() {
	mainthread.Init(run)
}
