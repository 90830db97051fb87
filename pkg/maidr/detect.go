package maidr

import (
	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/plot"
)

// Detect classifies a layer. The geom fixes the family of elements the
// layer is drawn as; within that family the stat and position refine the
// kind. A bar geom with a binning stat is a histogram, a line geom with a
// smoothing or density stat is a smooth. A stat that has no reading in the
// geom's family, such as box statistics drawn as bars, yields KindUnknown.
// A stacked or dodged bar without a fill binding is a spec error; Detect
// then returns KindUnknown with an error explaining why.
func Detect(l *plot.Layer) (Kind, error) {
	stat := l.StatName()
	switch l.Family() {
	case plot.FamilyBox:
		return KindBox, nil
	case plot.FamilyRect:
		switch stat {
		case plot.StatBin:
			return KindHistogram, nil
		case plot.StatBoxplot, plot.StatSmooth, plot.StatDensity:
			return KindUnknown, nil
		}
		pos := l.PositionName()
		switch {
		case pos != plot.PositionIdentity && l.Aes.Fill == "":
			return KindUnknown, errors.New(errors.ErrCodeMissingBinding,
				"%s bars need a fill binding", positionName(pos))
		case pos == plot.PositionStack:
			return KindStackedBar, nil
		case pos == plot.PositionDodge:
			return KindDodgedBar, nil
		}
		return KindBar, nil
	case plot.FamilyLine:
		switch stat {
		case plot.StatSmooth, plot.StatDensity:
			return KindSmooth, nil
		case plot.StatBoxplot:
			return KindUnknown, nil
		}
		return KindLine, nil
	case plot.FamilyPoint:
		if stat == plot.StatBoxplot {
			return KindUnknown, nil
		}
		return KindPoint, nil
	}
	return KindUnknown, nil
}

func positionName(pos string) string {
	if pos == plot.PositionStack {
		return "stacked"
	}
	return "dodged"
}

// checkBindings verifies that the dataset has the columns a kind reads.
func checkBindings(k Kind, l *plot.Layer, d *plot.Dataset) error {
	var required []string
	switch k {
	case KindBar, KindHistogram:
		required = []string{l.Aes.X}
	case KindStackedBar, KindDodgedBar:
		required = []string{l.Aes.X, l.Aes.Fill}
	case KindLine, KindPoint:
		required = []string{l.Aes.X}
		if !computesY(l) {
			required = append(required, l.Aes.Y)
		}
	case KindSmooth:
		required = []string{l.Aes.X}
	case KindBox:
		if l.Aes.X == "" && l.Aes.Y == "" {
			return errors.New(errors.ErrCodeMissingBinding, "box layer binds neither x nor y")
		}
	}
	for _, col := range required {
		if col == "" {
			return errors.New(errors.ErrCodeMissingBinding, "%s layer lacks a required binding", k)
		}
	}
	for _, col := range []string{l.Aes.X, l.Aes.Y, l.Aes.Fill, l.Aes.Color, l.Aes.Group} {
		if col != "" && !d.Has(col) {
			return errors.New(errors.ErrCodeMissingBinding, "column %q not in data", col)
		}
	}
	return nil
}

// computesY reports whether the layer's stat derives y from x alone.
func computesY(l *plot.Layer) bool {
	switch l.StatName() {
	case plot.StatBin, plot.StatCount, plot.StatDensity:
		return true
	}
	return false
}
