package hwc

import (
	"fmt"
	"strings"
)

// AssignmentKind is the discriminant of an [Assignment].
type AssignmentKind uint8

const (
	KindUndetermined AssignmentKind = iota
	KindPlane
	KindComposer
	KindDiscarded
)

func (k AssignmentKind) String() string {
	switch k {
	case KindUndetermined:
		return "undetermined"
	case KindPlane:
		return "plane"
	case KindComposer:
		return "composer"
	case KindDiscarded:
		return "discarded"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Assignment records where a layer goes this frame. The zero value is
// Undetermined. Build values with [Undetermined], [OnPlane], [OnComposer]
// and [Discarded]; the payload accessors only report ok for the matching
// kind.
type Assignment struct {
	kind     AssignmentKind
	plane    PlaneType
	composer ComposerID
}

// Undetermined is the state of every layer at the start of a pass.
func Undetermined() Assignment { return Assignment{} }

// OnPlane assigns the layer directly to a plane of type t.
func OnPlane(t PlaneType) Assignment { return Assignment{kind: KindPlane, plane: t} }

// OnComposer folds the layer into the input set of composer id.
func OnComposer(id ComposerID) Assignment { return Assignment{kind: KindComposer, composer: id} }

// Discarded drops the layer without routing it anywhere.
func Discarded() Assignment { return Assignment{kind: KindDiscarded} }

// Kind returns the variant.
func (a Assignment) Kind() AssignmentKind { return a.kind }

// Plane returns the plane type for KindPlane assignments.
func (a Assignment) Plane() (PlaneType, bool) {
	return a.plane, a.kind == KindPlane
}

// Composer returns the composer id for KindComposer assignments.
func (a Assignment) Composer() (ComposerID, bool) {
	return a.composer, a.kind == KindComposer
}

// IsUndetermined reports whether no decision was made yet.
func (a Assignment) IsUndetermined() bool { return a.kind == KindUndetermined }

// IsPlane reports whether the layer is bound to a plane of type t.
func (a Assignment) IsPlane(t PlaneType) bool {
	return a.kind == KindPlane && a.plane == t
}

// IsComposer reports whether the layer was folded into a composer.
func (a Assignment) IsComposer() bool { return a.kind == KindComposer }

func (a Assignment) String() string {
	switch a.kind {
	case KindPlane:
		return "plane(" + a.plane.String() + ")"
	case KindComposer:
		return "composer(" + string(a.composer) + ")"
	}
	return a.kind.String()
}

// MarshalText implements encoding.TextMarshaler so reports carry the
// readable form.
func (a Assignment) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for the String form.
func (a *Assignment) UnmarshalText(b []byte) error {
	v, ok := ParseAssignment(string(b))
	if !ok {
		return fmt.Errorf("unknown assignment %q", string(b))
	}
	*a = v
	return nil
}

// ParseAssignment reads the String form of an assignment.
func ParseAssignment(s string) (Assignment, bool) {
	switch s {
	case "undetermined":
		return Undetermined(), true
	case "discarded":
		return Discarded(), true
	}
	kind, arg, ok := strings.Cut(strings.TrimSuffix(s, ")"), "(")
	if !ok || !strings.HasSuffix(s, ")") {
		return Assignment{}, false
	}
	switch kind {
	case "plane":
		t, ok := ParsePlaneType(arg)
		if !ok {
			return Assignment{}, false
		}
		return OnPlane(t), true
	case "composer":
		if arg == "" {
			return Assignment{}, false
		}
		return OnComposer(ComposerID(arg)), true
	}
	return Assignment{}, false
}
