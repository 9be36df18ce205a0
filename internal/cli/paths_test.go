package cli

import (
	"path/filepath"
	"testing"

	"github.com/matzehuels/hwcomposer/pkg/scenario"
)

func TestCacheDir(t *testing.T) {
	home := t.TempDir()
	tests := []struct {
		name       string
		xdg        string
		configured string
		want       string
	}{
		{"home default", "", "", filepath.Join(home, ".cache", appName)},
		{"xdg", "/tmp/xdg-cache", "", filepath.Join("/tmp/xdg-cache", appName)},
		{"config wins", "/tmp/xdg-cache", "/srv/hwc-cache", "/srv/hwc-cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", home)
			t.Setenv("XDG_CACHE_HOME", tt.xdg)

			c := &CLI{config: scenario.DefaultConfig()}
			c.config.Cache.Dir = tt.configured
			got, err := c.cacheDir()
			if err != nil {
				t.Fatalf("cacheDir: %v", err)
			}
			if got != tt.want {
				t.Errorf("cacheDir() = %q, want %q", got, tt.want)
			}
		})
	}
}
