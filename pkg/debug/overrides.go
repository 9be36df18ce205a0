// Package debug edits debug overrides and dumps decision results.
//
// Overrides are set with the same command vocabulary a developer would
// pass through a debug property on a device:
//
//	--clear              drop every override
//	--nohwc 1            send every non-video layer to the client composer
//	--detail 1           add geometry columns to dumps
//	--hide-layer 12      discard layer 12
//	--show-layer 12      undo --hide-layer
//	--hide-plane 3       leave plane 3 out of the frame and blank it
//	--show-plane 3       undo --hide-plane
//
// Malformed ids are reported and skipped; the remaining commands still
// apply.
package debug

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

// Apply runs the commands in args against o. Commands may be given as
// separate words ("--hide-layer", "3") or joined ("--hide-layer=3").
func Apply(o *hwc.DebugOverrides, args []string) error {
	if o == nil {
		return errors.New(errors.ErrCodeInvalidInput, "nil overrides")
	}
	var problems []string
	for i := 0; i < len(args); i++ {
		cmd, val, joined := strings.Cut(args[i], "=")
		needsValue := cmd != "--clear"
		if needsValue && !joined {
			if i+1 >= len(args) {
				problems = append(problems, fmt.Sprintf("%s: missing value", cmd))
				continue
			}
			i++
			val = args[i]
		}

		switch cmd {
		case "--clear":
			*o = hwc.DebugOverrides{}
		case "--nohwc":
			on, err := parseSwitch(val)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", cmd, err))
				continue
			}
			o.ForceClient = on
		case "--detail":
			on, err := parseSwitch(val)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", cmd, err))
				continue
			}
			o.Detail = on
		case "--hide-layer", "--show-layer":
			id, err := parseID(val)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", cmd, err))
				continue
			}
			if o.HiddenLayers == nil {
				o.HiddenLayers = make(map[hwc.LayerID]bool)
			}
			if cmd == "--hide-layer" {
				o.HiddenLayers[hwc.LayerID(id)] = true
			} else {
				delete(o.HiddenLayers, hwc.LayerID(id))
			}
		case "--hide-plane", "--show-plane":
			id, err := parseID(val)
			if err != nil || id > uint64(^hwc.PlaneID(0)) {
				problems = append(problems, fmt.Sprintf("%s: invalid plane id %q", cmd, val))
				continue
			}
			if o.HiddenPlanes == nil {
				o.HiddenPlanes = make(map[hwc.PlaneID]bool)
			}
			if cmd == "--hide-plane" {
				o.HiddenPlanes[hwc.PlaneID(id)] = true
			} else {
				delete(o.HiddenPlanes, hwc.PlaneID(id))
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown command %q", cmd))
		}
	}
	if len(problems) > 0 {
		return errors.New(errors.ErrCodeInvalidInput, "%s", strings.Join(problems, "; "))
	}
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("expected 0 or 1, got %q", s)
}

func parseID(s string) (uint64, error) {
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative id %q", s)
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
