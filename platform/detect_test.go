package platform

import (
	"errors"
	"strings"
	"testing"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name         string
		goos, goarch string
		env          map[string]string
		wantSession  string
		wantSilicon  bool
	}{
		{name: "wayland", goos: "linux", goarch: "amd64", env: map[string]string{"XDG_SESSION_TYPE": "Wayland"}, wantSession: SessionWayland},
		{name: "x11", goos: "linux", goarch: "amd64", env: map[string]string{"XDG_SESSION_TYPE": "x11"}, wantSession: SessionX11},
		{name: "wayland display fallback", goos: "linux", goarch: "amd64", env: map[string]string{"WAYLAND_DISPLAY": "wayland-0"}, wantSession: SessionWayland},
		{name: "display fallback", goos: "linux", goarch: "amd64", env: map[string]string{"DISPLAY": ":0"}, wantSession: SessionX11},
		{name: "tty", goos: "linux", goarch: "amd64", env: map[string]string{}},
		{name: "apple silicon", goos: "darwin", goarch: "arm64", env: map[string]string{"DISPLAY": ":0"}, wantSilicon: true},
		{name: "intel mac", goos: "darwin", goarch: "amd64", env: map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := detect(tt.goos, tt.goarch, env(tt.env))
			if info.Session != tt.wantSession {
				t.Errorf("Session = %q, want %q", info.Session, tt.wantSession)
			}
			if info.AppleSilicon != tt.wantSilicon {
				t.Errorf("AppleSilicon = %v, want %v", info.AppleSilicon, tt.wantSilicon)
			}
		})
	}
}

func stubEnv(t *testing.T, commands []string, uinput bool) {
	t.Helper()
	origLook, origWrite := LookPath, canWrite
	t.Cleanup(func() { LookPath, canWrite = origLook, origWrite })
	LookPath = func(name string) (string, error) {
		for _, c := range commands {
			if c == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	canWrite = func(string) bool { return uinput }
}

func TestWarnings(t *testing.T) {
	wayland := Info{OS: "linux", Session: SessionWayland}

	stubEnv(t, nil, true)
	warns := Warnings(wayland, "auto")
	if len(warns) != 1 || !strings.Contains(warns[0], "ydotool") {
		t.Errorf("warnings = %v, want ydotool warning", warns)
	}
	if warns := Warnings(wayland, "paste"); len(warns) != 0 {
		t.Errorf("paste backend should not need ydotool: %v", warns)
	}

	stubEnv(t, []string{"ydotool"}, false)
	warns = Warnings(wayland, "type")
	if len(warns) != 1 || !strings.Contains(warns[0], "uinput") {
		t.Errorf("warnings = %v, want uinput warning", warns)
	}

	if warns := Warnings(Info{OS: "darwin"}, "auto"); len(warns) != 0 {
		t.Errorf("darwin warnings = %v", warns)
	}
}
