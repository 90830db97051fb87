package maidr

import (
	"regexp"

	"github.com/matzehuels/maidr/pkg/plot"
)

// Kind classifies a layer.
type Kind int

// Layer kinds.
const (
	KindBar Kind = iota
	KindStackedBar
	KindDodgedBar
	KindHistogram
	KindLine
	KindPoint
	KindBox
	KindSmooth
	KindUnknown
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{
	KindBar, KindStackedBar, KindDodgedBar, KindHistogram,
	KindLine, KindPoint, KindBox, KindSmooth, KindUnknown,
}

var kindNames = [...]string{
	KindBar:        "bar",
	KindStackedBar: "stacked_bar",
	KindDodgedBar:  "dodged_bar",
	KindHistogram:  "hist",
	KindLine:       "line",
	KindPoint:      "point",
	KindBox:        "box",
	KindSmooth:     "smooth",
	KindUnknown:    "unknown",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// ParseKind returns the kind with the given wire name.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// Container name patterns of the rendered layer groups.
var (
	rectPattern     = regexp.MustCompile(`^geom_rect\.rect\.\d+$`)
	polylinePattern = regexp.MustCompile(`^GRID\.polyline\.\d+$`)
	pointsPattern   = regexp.MustCompile(`^geom_point\.points\.\d+$`)
	boxPattern      = regexp.MustCompile(`^geom_boxplot\.gTree\.\d+$`)
)

// family is the element family a layer of kind k is drawn as.
func (k Kind) family() plot.Family {
	switch k {
	case KindBar, KindStackedBar, KindDodgedBar, KindHistogram:
		return plot.FamilyRect
	case KindLine, KindSmooth:
		return plot.FamilyLine
	case KindPoint:
		return plot.FamilyPoint
	case KindBox:
		return plot.FamilyBox
	}
	return plot.FamilyOther
}

// familyPattern returns the name pattern of the group a layer of family f
// is drawn into, or nil when it has none.
func familyPattern(f plot.Family) *regexp.Regexp {
	switch f {
	case plot.FamilyRect:
		return rectPattern
	case plot.FamilyLine:
		return polylinePattern
	case plot.FamilyPoint:
		return pointsPattern
	case plot.FamilyBox:
		return boxPattern
	}
	return nil
}

// containerPattern returns the name pattern of the group a layer of kind k
// is drawn into, or nil when it has none.
func containerPattern(k Kind) *regexp.Regexp {
	return familyPattern(k.family())
}
