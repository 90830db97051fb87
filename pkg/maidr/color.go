package maidr

import (
	"math"
	"sort"

	"github.com/matzehuels/maidr/pkg/render"
)

// colorMap maps rendered fill colors back to category levels.
//
// Colors and categories pair up in order of first appearance in the built
// rows. When several categories share one color, the color belongs to the
// category that appeared first.
type colorMap struct {
	category map[string]string // color to category
	color    map[string]string // category to color
	first    map[string]int    // category to first appearance
}

func mapColors(rows []render.Row, levels []string) colorMap {
	cm := colorMap{
		category: make(map[string]string),
		color:    make(map[string]string),
		first:    make(map[string]int),
	}
	for _, r := range rows {
		if r.Group < 1 || r.Group > len(levels) {
			continue
		}
		cat := levels[r.Group-1]
		if _, ok := cm.color[cat]; ok {
			continue
		}
		cm.first[cat] = len(cm.first)
		cm.color[cat] = r.Fill
		if _, ok := cm.category[r.Fill]; !ok {
			cm.category[r.Fill] = cat
		}
	}
	return cm
}

// stackOrder returns the categories of a stacked layer from the top of the
// stack down. A category's height is the mean bottom edge of the bars
// drawn in its color. Categories sharing a color share a height and keep
// their order of first appearance. Categories that were never drawn come
// last, in level order.
func stackOrder(rows []render.Row, levels []string) []string {
	cm := mapColors(rows, levels)

	sum := make(map[string]float64)
	n := make(map[string]int)
	for _, r := range rows {
		if cat, ok := cm.category[r.Fill]; ok {
			sum[cat] += r.YMin
			n[cat]++
		}
	}
	height := func(cat string) float64 {
		owner, ok := cm.category[cm.color[cat]]
		if !ok || n[owner] == 0 {
			return math.Inf(-1)
		}
		return sum[owner] / float64(n[owner])
	}
	rank := func(cat string) int {
		if i, ok := cm.first[cat]; ok {
			return i
		}
		return len(levels) + len(cm.first)
	}

	order := append([]string(nil), levels...)
	sort.SliceStable(order, func(a, b int) bool {
		ha, hb := height(order[a]), height(order[b])
		if ha != hb {
			return ha > hb
		}
		return rank(order[a]) < rank(order[b])
	})
	return order
}
