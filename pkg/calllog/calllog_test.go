package calllog

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/maidr"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render/svg"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *Call
	}{
		{"blank", "   ", nil},
		{"comment", "# setup", nil},
		{
			"named",
			`barplot height=3,5,2 names.arg=Thu,Fri,Sat main="Tips by day"`,
			&Call{Func: "barplot", Args: map[string][]string{
				"height":    {"3", "5", "2"},
				"names.arg": {"Thu", "Fri", "Sat"},
				"main":      {"Tips by day"},
			}},
		},
		{
			"positional",
			"lines 1,2,3 4,5,6",
			&Call{Func: "lines", Args: map[string][]string{}, Positional: [][]string{{"1", "2", "3"}, {"4", "5", "6"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseLineUnbalancedQuote(t *testing.T) {
	if _, err := ParseLine(`plot main="open`); err == nil {
		t.Error("ParseLine with an unterminated quote should fail")
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	r := NewRecorder()
	r.Record("barplot", map[string][]string{
		"height": {"1", "2"},
		"main":   {"Two bars"},
	})
	r.Record("points", nil, []string{"1", "2"}, []string{"3", "4"})

	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	calls, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(calls, r.Calls()) {
		t.Errorf("round trip = %+v, want %+v", calls, r.Calls())
	}

	r.Reset()
	if n := len(r.Calls()); n != 0 {
		t.Errorf("Calls() after Reset = %d, want 0", n)
	}
}

func TestRecorderCopiesArgs(t *testing.T) {
	r := NewRecorder()
	args := map[string][]string{"x": {"1"}}
	r.Record("hist", args)
	args["x"][0] = "changed"
	if got := r.Calls()[0].Args["x"][0]; got != "1" {
		t.Errorf("recorded arg = %q, want 1", got)
	}
}

func parse(t *testing.T, log string) []Call {
	t.Helper()
	calls, err := Parse(strings.NewReader(log))
	if err != nil {
		t.Fatal(err)
	}
	return calls
}

func runSpec(t *testing.T, spec *plot.Spec) *maidr.Result {
	t.Helper()
	o := maidr.NewOrchestrator(svg.New(), log.NewWithOptions(io.Discard, log.Options{}))
	res, err := o.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := maidr.Verify(res); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return res
}

func types(res *maidr.Result) []string {
	var out []string
	for _, l := range res.Payload.Layers() {
		out = append(out, l.Type)
	}
	return out
}

func TestToSpecKinds(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want []string
	}{
		{"barplot", "barplot height=3,5,2 names.arg=Thu,Fri,Sat", []string{"bar"}},
		{"stacked", "barplot height=1,2,3,4 names.arg=a,b legend.text=m,f", []string{"stacked_bar"}},
		{"dodged", "barplot height=1,2,3,4 names.arg=a,b legend.text=m,f beside=TRUE", []string{"dodged_bar"}},
		{"hist", "hist x=1,2,2,3,3,3,4 breaks=3", []string{"hist"}},
		{"scatter", "plot x=1,2,3 y=3,1,2", []string{"point"}},
		{"line", "plot 3,1,2 type=l", []string{"line"}},
		{"both", "plot x=1,2,3 y=3,1,2 type=b", []string{"line", "point"}},
		{"overlay", "plot x=1,2,3 y=3,1,2\nlines x=1,2,3 y=2,2,2", []string{"point", "line"}},
		{"boxplot", "boxplot x=1,2,3,4,10,5,6,7 g=a,a,a,a,a,b,b,b", []string{"box"}},
		{"horizontal box", "boxplot x=1,2,3,4 horizontal=TRUE", []string{"box"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ToSpec(parse(t, tt.log))
			if err != nil {
				t.Fatalf("ToSpec: %v", err)
			}
			if got := types(runSpec(t, spec)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("layer types = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToSpecBarplotMatrix(t *testing.T) {
	spec, err := ToSpec(parse(t, "barplot height=1,2,3,4 names.arg=b,a legend.text=m,f"))
	if err != nil {
		t.Fatal(err)
	}
	d := spec.Layers[0].Data
	if got := d.Values("x"); !reflect.DeepEqual(got, []string{"b", "b", "a", "a"}) {
		t.Errorf("x = %v, want column-major bars", got)
	}
	if got := d.Values("fill"); !reflect.DeepEqual(got, []string{"m", "f", "m", "f"}) {
		t.Errorf("fill = %v, want legend rows", got)
	}
	if got := d.Levels("x"); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("x levels = %v, want call order", got)
	}
}

func TestToSpecComposition(t *testing.T) {
	spec, err := ToSpec(parse(t, "par mfrow=1,2\nhist x=1,2,3\nbarplot height=1,2"))
	if err != nil {
		t.Fatal(err)
	}
	if spec.Composition == nil || spec.Composition.NCol != 2 || len(spec.Composition.Plots) != 2 {
		t.Fatalf("Composition = %+v, want 2 plots in 2 columns", spec.Composition)
	}
	res := runSpec(t, spec)
	if got := len(res.Payload.Subplots); got != 1 {
		t.Errorf("subplot rows = %d, want 1", got)
	}
}

func TestToSpecTitles(t *testing.T) {
	spec, err := ToSpec(parse(t, `plot x=1,2 y=2,1 main="Trend" xlab=Year ylab="Sales (k)"`))
	if err != nil {
		t.Fatal(err)
	}
	if spec.Title != "Trend" || spec.Axes.X != "Year" || spec.Axes.Y != "Sales (k)" {
		t.Errorf("titles = %q %+v", spec.Title, spec.Axes)
	}
}

func TestToSpecErrors(t *testing.T) {
	tests := []struct {
		name string
		log  string
		code errors.Code
	}{
		{"empty", "", errors.ErrCodeInvalidSpec},
		{"lines first", "lines x=1,2 y=1,2", errors.ErrCodeInvalidSpec},
		{"unknown function", "pie x=1,2", errors.ErrCodeUnsupported},
		{"no heights", "barplot main=x", errors.ErrCodeMissingBinding},
		{"ragged matrix", "barplot height=1,2,3 legend.text=a,b", errors.ErrCodeInvalidInput},
		{"bad breaks", "hist x=1,2 breaks=Sturges", errors.ErrCodeInvalidInput},
		{"length mismatch", "plot x=1,2,3 y=1,2", errors.ErrCodeInvalidInput},
		{"bad type", "plot x=1 y=1 type=h", errors.ErrCodeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToSpec(parse(t, tt.log))
			if !errors.Is(err, tt.code) {
				t.Errorf("ToSpec error = %v, want code %s", err, tt.code)
			}
		})
	}
}
