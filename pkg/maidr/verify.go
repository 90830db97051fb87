package maidr

import (
	stderrors "errors"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/selector"
)

// Verify checks that every selector of the result matches at least one
// element, both in the rendered tree and, when present, in the exported
// document. It returns nil when all selectors resolve.
func Verify(res *Result) error {
	var errs []error
	for _, l := range res.Payload.Layers() {
		for _, sel := range l.SelectorList() {
			nodes, err := selector.Resolve(res.Tree, sel)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if len(nodes) == 0 {
				errs = append(errs, errors.New(errors.ErrCodeStructuralMismatch,
					"layer %s: %s matches nothing", l.ID, sel))
				continue
			}
			if len(res.Export) == 0 {
				continue
			}
			n, err := selector.ResolveHTML(res.Export, sel)
			if err != nil {
				errs = append(errs, err)
			} else if n != len(nodes) {
				errs = append(errs, errors.New(errors.ErrCodeStructuralMismatch,
					"layer %s: %s matches %d exported elements, %d nodes", l.ID, sel, n, len(nodes)))
			}
		}
	}
	return stderrors.Join(errs...)
}
