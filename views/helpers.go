package views

import (
	"context"
	"fmt"
	"io"

	"github.com/AdamBeresnev/album-bracket/internal/middleware"
	users "github.com/AdamBeresnev/album-bracket/internal/user"
	"github.com/a-h/templ"
)

func GetUser(ctx context.Context) *users.User {
	return middleware.GetAuthenticatedUser(ctx)
}

// writer collects the first write error so markup can be emitted without
// checking every call.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *writer) rawf(format string, args ...any) {
	w.raw(fmt.Sprintf(format, args...))
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) render(ctx context.Context, c templ.Component) {
	if w.err == nil {
		w.err = c.Render(ctx, w.w)
	}
}

func attr(s string) string {
	return templ.EscapeString(s)
}
