package views

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// Layout wraps a page body with the shared head and navigation.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		out.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		out.raw(`<title>`)
		out.text(title)
		out.raw(` | Album Bracket</title>`)
		out.raw(`<link rel="stylesheet" href="/static/style.css">`)
		out.raw(`<script src="https://unpkg.com/htmx.org@2.0.4"></script>`)
		out.raw(`</head><body><nav><a href="/">Album Bracket</a>`)
		if u := GetUser(ctx); u != nil {
			out.raw(`<span class="user">`)
			out.text(u.Username)
			out.raw(`</span><button hx-post="/logout">Log out</button>`)
		}
		out.raw(`</nav><main>`)
		out.render(ctx, body)
		out.raw(`</main></body></html>`)
		return out.err
	})
}
