package app

import (
	"github.com/GoCodeAlone/todospa/render"
	"github.com/GoCodeAlone/todospa/route"
)

// Route kinds of the todo client.
const (
	Home route.Kind = "Home"
	Card route.Kind = "Card"
)

// Routes is the route table: Home at /c, Card at /card, and a catch-all
// that resolves everything else to NotFound.
func Routes() []route.Config {
	return []route.Config{
		{Kind: Home, Pattern: "/c"},
		{Kind: Card, Pattern: "/card"},
		{Kind: route.NotFound, Pattern: "/:404..."},
	}
}

// NewRouter builds a router over Routes.
func NewRouter() (*route.Router, error) {
	return route.NewRouter(Routes()...)
}

// Links are the navigation entries of the text renderer.
func Links() []render.Link {
	return []render.Link{
		{Kind: Home, Label: "Home", Path: "/c"},
		{Kind: Card, Label: "Card", Path: "/card"},
	}
}

// Views maps each route kind to its text view.
func Views() map[route.Kind]render.View {
	return map[route.Kind]render.View{
		Home:           render.Home,
		Card:           render.Card,
		route.NotFound: render.NotFound,
	}
}
