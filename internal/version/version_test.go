package version

import (
	"strings"
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	if !strings.Contains(info, "meetbot version") {
		t.Errorf("version info missing prefix: %s", info)
	}
	if !strings.Contains(info, Version) {
		t.Errorf("version info missing version %q: %s", Version, info)
	}
	if !strings.Contains(info, "go:") {
		t.Errorf("version info missing go runtime: %s", info)
	}
}
