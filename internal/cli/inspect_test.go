package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

const boxPayload = `{"id":"chart","subplots":[[{"id":"p0","layers":[
{"id":"l0","type":"box","title":"","axes":{"x":"","y":""},"orientation":"vert",
 "data":[{"fill":"a","lowerOutliers":[],"min":1,"q1":2,"q2":3,"q3":4,"max":5,"upperOutliers":[9]}],
 "selectors":[{"lowerOutliers":[],"min":"#min","iq":"#iq","q2":"#q2","max":"#max","upperOutliers":["#out"]}]},
{"id":"l1","type":"line","title":"trend","axes":{"x":"x","y":"y"},
 "data":[[{"x":1,"y":2},{"x":2,"y":3}],[{"x":1,"y":4}]],
 "selectors":["#line-a","#line-b"]}
]}]]}`

func TestPayloadRows(t *testing.T) {
	rows, err := payloadRows([]byte(boxPayload))
	if err != nil {
		t.Fatalf("payloadRows() error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("payloadRows() returned %d rows, want 2", len(rows))
	}

	box := rows[0]
	if box.Type != "box" || box.Points != 1 || box.Panel != "0,0" {
		t.Errorf("box row = %+v", box)
	}
	wantSel := []string{"#min", "#iq", "#q2", "#max", "#out"}
	if strings.Join(box.Selectors, " ") != strings.Join(wantSel, " ") {
		t.Errorf("box selectors = %v, want %v", box.Selectors, wantSel)
	}

	line := rows[1]
	if line.Points != 3 {
		t.Errorf("line points = %d, want 3", line.Points)
	}
	if len(line.Selectors) != 2 {
		t.Errorf("line selectors = %v, want 2", line.Selectors)
	}
}

func TestPayloadRowsInvalid(t *testing.T) {
	if _, err := payloadRows([]byte(`{"subplots":`)); err == nil {
		t.Error("payloadRows(truncated) error = nil, want error")
	}
}

func TestIsPayload(t *testing.T) {
	tests := []struct {
		data string
		want bool
	}{
		{boxPayload, true},
		{`{"layers":[{"geom":"bar"}]}`, false},
		{`not json`, false},
	}
	for _, tt := range tests {
		if got := isPayload([]byte(tt.data)); got != tt.want {
			t.Errorf("isPayload(%.20q) = %v, want %v", tt.data, got, tt.want)
		}
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(m payloadModel, keys ...string) payloadModel {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(payloadModel)
	}
	return m
}

func TestPayloadModelNavigation(t *testing.T) {
	rows, err := payloadRows([]byte(boxPayload))
	if err != nil {
		t.Fatal(err)
	}
	m := newPayloadModel("chart.json", rows)

	m = update(m, "down", "down", "down")
	if m.Cursor != 1 {
		t.Errorf("Cursor after 3x down = %d, want 1", m.Cursor)
	}
	m = update(m, "k")
	if m.Cursor != 0 {
		t.Errorf("Cursor after k = %d, want 0", m.Cursor)
	}

	m = update(m, "j", "enter")
	if !m.Detail {
		t.Fatal("Detail = false after enter")
	}
	if view := m.View(); !strings.Contains(view, "#line-b") {
		t.Errorf("detail view missing selector:\n%s", view)
	}

	m = update(m, "esc")
	if m.Detail {
		t.Error("Detail = true after esc")
	}
	if view := m.View(); !strings.Contains(view, "l0") || !strings.Contains(view, "[2/2]") {
		t.Errorf("list view missing layers or position:\n%s", view)
	}
}

func TestPayloadModelQuit(t *testing.T) {
	m := newPayloadModel("chart.json", nil)
	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Error("q did not return a quit command")
	}
	m = update(m, "enter")
	if m.Detail {
		t.Error("enter opened detail view with no layers")
	}
}
