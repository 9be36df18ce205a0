package scenario

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

const tvScenario = `
name = "tv"

[display]
name = "hdmi"
topology = "auto"

[display.flags]
hide_secure = true

[[display.planes]]
id = 1
type = "overlay"
capabilities = ["primary", "zorder"]

[[display.planes]]
id = 2
type = "video"

[[display.composers]]
id = "gpu"
kind = "universal"

[[frames]]
name = "boot"

[[frames.layers]]
id = 1
z = 0
format = "video"
frame = [0, 0, 1920, 1080]
crop = [0, 0, 3840, 2160]
hints = ["tunnel"]

[[frames.layers]]
id = 2
z = 1
frame = [0, 0, 1920, 1080]
alpha = 0.5
blend = "coverage"
compressed = true

[[frames]]
debug = ["--hide-layer 2"]

[frames.flags]
force_client = true

[[frames.layers]]
id = 2
z = 1
frame = [100, 100, 300, 200]
transform = "rot90"
secure = true
`

func decodeTOML(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := Decode(strings.NewReader(src), FormatTOML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return s
}

func TestDecodeTOML(t *testing.T) {
	s := decodeTOML(t, tvScenario)

	if s.Name != "tv" || s.Display.Name != "hdmi" || len(s.Frames) != 2 {
		t.Fatalf("scenario = %+v", s)
	}
	if got := s.Display.Planes[1].Type; got != hwc.PlaneVideo {
		t.Errorf("plane 2 type = %v", got)
	}
	if !s.Display.Flags.HideSecure {
		t.Error("display flags not decoded")
	}

	layers, err := s.Frames[0].Layers()
	if err != nil {
		t.Fatalf("Layers: %v", err)
	}
	video, ui := layers[0], layers[1]
	if video.Format != hwc.FormatVideoOverlay || video.Crop != hwc.NewRect(0, 0, 3840, 2160) {
		t.Errorf("video layer = %+v", video)
	}
	if video.Hints == 0 {
		t.Error("video hints not parsed")
	}
	if video.Alpha != 1 {
		t.Errorf("default alpha = %v, want 1", video.Alpha)
	}
	if ui.Format != hwc.FormatScanout || ui.Alpha != 0.5 || ui.Blend != hwc.BlendCoverage || !ui.Compressed {
		t.Errorf("ui layer = %+v", ui)
	}
	if ui.Crop != hwc.NewRect(0, 0, 1920, 1080) {
		t.Errorf("default crop = %v, want the frame size", ui.Crop)
	}

	second := s.Frames[1]
	if flags := s.Display.FlagsFor(second); !flags.ForceClient || flags.HideSecure {
		t.Errorf("frame flags = %+v, want the frame's own", flags)
	}
	if flags := s.Display.FlagsFor(s.Frames[0]); !flags.HideSecure {
		t.Errorf("inherited flags = %+v", flags)
	}
	rotated, _ := second.Layers()
	if rotated[0].Transform != hwc.Rot90 || !rotated[0].Secure || rotated[0].ValidGeometry() {
		t.Errorf("rotated layer = %+v", rotated[0])
	}
}

func TestLayersAreFresh(t *testing.T) {
	s := decodeTOML(t, tvScenario)
	a, _ := s.Frames[0].Layers()
	b, _ := s.Frames[0].Layers()
	a[0].Assignment = hwc.Discarded()
	if b[0].Assignment == a[0].Assignment || a[0] == b[0] {
		t.Error("Layers shares state between calls")
	}
}

func TestDecodeRejects(t *testing.T) {
	base := func(layer string) string {
		return `
[display]
name = "d"
[[display.planes]]
id = 1
type = "overlay"
[[frames]]
[[frames.layers]]
` + layer
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", "name = ", "parse scenario"},
		{"no frames", "[display]\nname = \"d\"\n[[display.planes]]\nid = 1\ntype = \"overlay\"\n", "no frames"},
		{"no resources", "[display]\nname = \"d\"\n[[frames]]\n", "neither planes nor composers"},
		{"bad display name", "[display]\nname = \"a b\"\n", "display name"},
		{"bad topology", strings.Replace(base("id = 1\nframe = [0,0,1,1]"), `name = "d"`, "name = \"d\"\ntopology = \"triple\"", 1), "unknown topology"},
		{"z out of range", base("id = 1\nz = 64\nframe = [0,0,1,1]"), "z-order"},
		{"short rect", base("id = 1\nframe = [0,0,1]"), "needs 4 values"},
		{"inverted rect", base("id = 1\nframe = [10,0,5,1]"), "inverted"},
		{"negative crop", base("id = 1\nframe = [0,0,1,1]\ncrop = [-1,0,1,1]"), "negative origin"},
		{"alpha", base("id = 1\nframe = [0,0,1,1]\nalpha = 1.5"), "alpha"},
		{"transform", base("id = 1\nframe = [0,0,1,1]\ntransform = \"rot45\""), "transform"},
		{"blend", base("id = 1\nframe = [0,0,1,1]\nblend = \"add\""), "blend"},
		{"hint", base("id = 1\nframe = [0,0,1,1]\nhints = [\"warp\"]"), "warp"},
		{"format", base("id = 1\nframe = [0,0,1,1]\nformat = \"yuv\""), "parse scenario"},
		{"duplicate id", base("id = 1\nframe = [0,0,1,1]\n[[frames.layers]]\nid = 1\nframe = [0,0,1,1]"), "duplicate layer id 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src), FormatTOML)
			if err == nil {
				t.Fatal("Decode succeeded")
			}
			if !errors.Is(err, errors.ErrCodeInvalidScenario) {
				t.Errorf("code = %s, want %s", errors.GetCode(err), errors.ErrCodeInvalidScenario)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestTooManyLayers(t *testing.T) {
	s := decodeTOML(t, tvScenario)
	s.Frames[0].Layers = nil
	for i := range errors.MaxLayers + 1 {
		s.Frames[0].Layers = append(s.Frames[0].Layers, Layer{ID: uint64(i), Frame: []int{0, 0, 1, 1}})
	}
	if err := s.Validate(); err == nil || !strings.Contains(err.Error(), "at most") {
		t.Errorf("Validate = %v", err)
	}
}

func TestUnknownFormat(t *testing.T) {
	if _, err := Decode(strings.NewReader("{}"), "yaml"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Decode(yaml) = %v", err)
	}
	s := decodeTOML(t, tvScenario)
	if err := s.Encode(&bytes.Buffer{}, "xml"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Encode(xml) = %v", err)
	}
}

func TestFormatsHashAlike(t *testing.T) {
	s := decodeTOML(t, tvScenario)

	var js bytes.Buffer
	if err := s.Encode(&js, FormatJSON); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(&js, FormatJSON)
	if err != nil {
		t.Fatalf("Decode(json): %v", err)
	}
	if back.Hash() != s.Hash() {
		t.Error("JSON copy hashes differently")
	}

	back.Frames[1].Layers[0].Z = 2
	if back.Hash() == s.Hash() {
		t.Error("edited scenario hashes the same")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "living-room.toml")
	src := strings.Replace(tvScenario, `name = "tv"`, "", 1)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "living-room" {
		t.Errorf("Name = %q, want the file stem", s.Name)
	}

	jsonPath := filepath.Join(dir, "copy.JSON")
	var buf bytes.Buffer
	_ = s.Encode(&buf, FormatJSON)
	if err := os.WriteFile(jsonPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(jsonPath); err != nil {
		t.Errorf("Load(json): %v", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Load(missing) = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil || cfg.Server.Addr != ":8080" || cfg.Mongo.Collection != "reports" {
		t.Fatalf("defaults = %+v, %v", cfg, err)
	}

	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	cfg, err = LoadConfig(write("ok.toml", `
[redis]
addr = "localhost:6379"
prefix = "hwc:"
[mongo]
uri = "mongodb://db:27017"
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Prefix != "hwc:" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" || cfg.Mongo.Database != "hwcomposer" {
		t.Errorf("mongo = %+v, want uri set and defaults kept", cfg.Mongo)
	}

	tests := []struct {
		name string
		body string
		code errors.Code
	}{
		{"unknown key", "[server]\nport = 80\n", errors.ErrCodeInvalidFormat},
		{"syntax", "[server\n", errors.ErrCodeInvalidFormat},
		{"bad mongo uri", "[mongo]\nuri = \"http://db\"\n", errors.ErrCodeInvalidInput},
		{"bad cache dir", "[cache]\ndir = \"../up\"\n", errors.ErrCodeInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(write(strings.ReplaceAll(tt.name, " ", "-")+".toml", tt.body))
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(dir, "none.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing config = %v", err)
	}
}
