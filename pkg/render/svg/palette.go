package svg

// DefaultPalette assigns colors to category levels in level order.
var DefaultPalette = []string{
	"#F8766D", "#00BA38", "#619CFF", "#C77CFF", "#00BFC4",
	"#B79F00", "#F564E3", "#FF7F0E", "#7F7F7F", "#17BECF",
}

const (
	defaultFill   = "#595959"
	defaultStroke = "#000000"
	boxFill       = "#FFFFFF"
	panelFill     = "#EBEBEB"
	gridStroke    = "#FFFFFF"
)

func (r *Renderer) color(group int, categorical bool, fallback string) string {
	if !categorical || group < 1 {
		return fallback
	}
	return r.palette[(group-1)%len(r.palette)]
}
