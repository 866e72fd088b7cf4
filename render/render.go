// Package render draws frames of application state. The Text renderer
// writes a plain-text page per frame; it picks the view from the local
// segment of the route and renders the whole page every time.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"

	"github.com/GoCodeAlone/todospa/action"
	"github.com/GoCodeAlone/todospa/route"
	"github.com/GoCodeAlone/todospa/store"
)

// Frame is what a renderer draws.
type Frame struct {
	Revision uint64
	State    store.State
	Local    route.Segment
	Actions  *action.Set
}

// Renderer draws frames. Render is called once per published revision,
// from the update loop.
type Renderer interface {
	Render(Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame) error

func (f RendererFunc) Render(fr Frame) error { return f(fr) }

// View writes the body of one page.
type View func(w io.Writer, f Frame) error

// Link is a navigation entry shown above every page.
type Link struct {
	Kind  route.Kind
	Label string
	Path  string
}

// Text renders frames as plain text.
type Text struct {
	mu       sync.Mutex
	out      io.Writer
	links    []Link
	views    map[route.Kind]View
	fallback View
}

// NewText returns a renderer writing to out. views maps local segment
// kinds to views; unknown kinds use the NotFound view.
func NewText(out io.Writer, links []Link, views map[route.Kind]View) *Text {
	t := &Text{
		out:      out,
		links:    links,
		views:    views,
		fallback: NotFound,
	}
	if v, ok := views[route.NotFound]; ok {
		t.fallback = v
	}
	return t
}

func (t *Text) Render(f Frame) error {
	view, ok := t.views[f.Local.Kind]
	if !ok {
		view = t.fallback
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- revision %d ---\n", f.Revision)
	t.nav(&b, f.State.Route)
	if err := view(&b, f); err != nil {
		return fmt.Errorf("render %s: %w", f.Local.Kind, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.out, b.String())
	return err
}

func (t *Text) nav(w io.Writer, r route.Route) {
	if len(t.links) == 0 {
		return
	}
	parts := make([]string, len(t.links))
	for i, l := range t.links {
		if r.Has(l.Kind) {
			parts[i] = fmt.Sprintf("[%s] %s", l.Label, l.Path)
		} else {
			parts[i] = fmt.Sprintf(" %s  %s", l.Label, l.Path)
		}
	}
	fmt.Fprintln(w, strings.Join(parts, " | "))
}

// Home is the landing view.
func Home(w io.Writer, f Frame) error {
	_, err := fmt.Fprintf(w, "Home\n\nYou have %d todos. Type \"go /card\" to see them.\n", len(f.State.Todos))
	return err
}

// Card lists the todos as a table.
func Card(w io.Writer, f Frame) error {
	if _, err := fmt.Fprintln(w, "Card"); err != nil {
		return err
	}
	if len(f.State.Todos) == 0 {
		_, err := fmt.Fprintln(w, "\nNo todos yet. Type \"add <name>\" to create one.")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Done", "Created"})
	for _, td := range f.State.Todos {
		done := ""
		if td.IsDone {
			done = "x"
		}
		created := ""
		if !td.DateCreated.IsZero() {
			created = td.DateCreated.Format("2006-01-02 15:04")
		}
		table.Append([]string{td.ID, td.Name, done, created})
	}
	table.Render()
	return nil
}

// NotFound is shown for routes without a view.
func NotFound(w io.Writer, f Frame) error {
	_, err := fmt.Fprintln(w, "Not Found")
	return err
}
