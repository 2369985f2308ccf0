package views

import (
	"context"
	"fmt"
	"io"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/service"
	"github.com/AdamBeresnev/album-bracket/internal/video"
	"github.com/a-h/templ"
	"github.com/google/uuid"
)

func LoginPage(providers []string) templ.Component {
	return Layout("Log in", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<section class="login"><h1>Album Bracket</h1>`)
		out.raw(`<p>Pit every track of an album against each other and vote for a winner with your friends.</p>`)
		for _, p := range providers {
			out.rawf(`<a class="button" href="/auth/%s">Continue with `, attr(p))
			out.text(providerName(p))
			out.raw(`</a>`)
		}
		out.raw(`<form method="post" action="/auth/guest"><button type="submit">Continue as guest</button></form>`)
		out.raw(`</section>`)
		return out.err
	}))
}

func providerName(p string) string {
	switch p {
	case "google":
		return "Google"
	case "discord":
		return "Discord"
	default:
		return p
	}
}

func Index(groups []group.Group) templ.Component {
	return Layout("Your groups", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<h1>Your groups</h1>`)
		if len(groups) == 0 {
			out.raw(`<p class="empty">You are not in any group yet. Create one or open an invite link.</p>`)
		}
		out.raw(`<ul class="groups">`)
		for _, g := range groups {
			out.rawf(`<li><a href="/groups/%s">`, g.ID)
			out.text(g.Name)
			out.raw(`</a></li>`)
		}
		out.raw(`</ul>`)
		out.raw(`<form hx-post="/groups" class="create-group">`)
		out.raw(`<input name="name" placeholder="Group name" maxlength="80" required>`)
		out.raw(`<button type="submit">Create group</button></form>`)
		return out.err
	}))
}

// JoinPage is what an invite link shows to someone outside the group.
func JoinPage(groupID uuid.UUID) templ.Component {
	return Layout("Join group", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<h1>Join this group</h1>`)
		out.rawf(`<form hx-post="/groups/%s/join">`, groupID)
		out.raw(`<input name="nickname" placeholder="Nickname (optional)" maxlength="80">`)
		out.raw(`<button type="submit">Join</button></form>`)
		return out.err
	}))
}

// GroupPage shows the active bracket and keeps it live over a websocket.
func GroupPage(g *group.Group, rec *group.BracketRecord, isOwner bool) templ.Component {
	return Layout(g.Name, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<header><h1>`)
		out.text(g.Name)
		out.raw(`</h1>`)
		out.rawf(`<a href="/groups/%s/dashboard">`, g.ID)
		if isOwner {
			out.raw(`Manage brackets`)
		} else {
			out.raw(`Past brackets`)
		}
		out.raw(`</a></header>`)

		out.render(ctx, BracketSection(g.ID, rec))

		out.rawf(`<script>(function(){
var proto = location.protocol === "https:" ? "wss://" : "ws://";
var connect = function(){
  var ws = new WebSocket(proto + location.host + "/ws/groups/%s");
  ws.onmessage = function(){ htmx.ajax("GET", "/groups/%s/bracket", {target: "#bracket", swap: "outerHTML"}); };
  ws.onclose = function(){ setTimeout(connect, 3000); };
};
connect();
})();</script>`, g.ID, g.ID)
		return out.err
	}))
}

// BracketSection is the part of the group page that is swapped on every update.
func BracketSection(groupID uuid.UUID, rec *group.BracketRecord) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<section id="bracket">`)
		if rec == nil {
			out.raw(`<p class="empty">No bracket is running. The group owner can start one from the dashboard.</p></section>`)
			return out.err
		}

		data := PrepareBracketData(&rec.Bracket)

		out.raw(`<h2>`)
		out.text(rec.Title())
		out.raw(`</h2>`)
		if rec.Album.ArtworkURL != "" {
			out.rawf(`<img class="artwork" src="%s" alt="">`, attr(rec.Album.ArtworkURL))
		}
		out.rawf(`<p class="progress">%d of %d matchups decided</p>`, data.Decided, data.Total)

		switch {
		case data.Champion != nil:
			out.raw(`<div class="champion"><span>Champion</span><strong>`)
			out.text(data.Champion.Name)
			out.raw(`</strong></div>`)
		case data.Current != nil:
			out.render(ctx, currentMatchup(groupID, data.Current))
		}

		out.raw(`<div class="rounds">`)
		for _, r := range data.Rounds {
			out.raw(`<div class="round"><h3>`)
			out.text(r.Name)
			out.raw(`</h3>`)
			for _, m := range r.Matchups {
				class := "matchup"
				if m.Current {
					class += " current"
				}
				if m.Void {
					class += " void"
				}
				out.rawf(`<div class="%s">`, class)
				writeSlot(out, m.A)
				writeSlot(out, m.B)
				out.raw(`</div>`)
			}
			out.raw(`</div>`)
		}
		out.raw(`</div></section>`)
		return out.err
	})
}

func writeSlot(out *writer, s SlotView) {
	class := "slot"
	switch {
	case s.Winner:
		class += " winner"
	case s.Bye:
		class += " bye"
	case s.Track == nil:
		class += " tbd"
	}
	out.rawf(`<div class="%s"><span>`, class)
	out.text(s.Label())
	out.raw(`</span>`)
	if s.Votes > 0 {
		out.rawf(`<span class="votes">%d</span>`, s.Votes)
	}
	out.raw(`</div>`)
}

func currentMatchup(groupID uuid.UUID, m *bracket.Matchup) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<div class="vote">`)
		for _, t := range []*bracket.Track{m.A.Track, m.B.Track} {
			out.raw(`<div class="contender"><h4>`)
			out.text(t.Name)
			out.raw(`</h4>`)
			writePreview(out, PreviewFor(t))
			out.rawf(`<form hx-post="/groups/%s/votes" hx-target="#bracket" hx-swap="outerHTML">`, groupID)
			out.rawf(`<input type="hidden" name="matchup_id" value="%s">`, attr(m.ID))
			out.rawf(`<input type="hidden" name="track_id" value="%s">`, attr(t.ID))
			out.raw(`<button type="submit">Vote</button></form></div>`)
		}
		out.raw(`</div>`)
		return out.err
	})
}

func writePreview(out *writer, e video.EmbedInfo) {
	switch e.Type {
	case video.EmbedTypeYouTube, video.EmbedTypeIframe:
		out.rawf(`<iframe src="%s" allow="encrypted-media" allowfullscreen></iframe>`, attr(e.URL))
	case video.EmbedTypeAudio:
		out.rawf(`<audio controls preload="none" src="%s"></audio>`, attr(e.URL))
	case video.EmbedTypeVideo:
		out.rawf(`<video controls preload="none" src="%s"></video>`, attr(e.URL))
	}
}

// DashboardPage lists a group's members and the brackets that are queued or
// finished. Owners also get the controls to add and start brackets.
func DashboardPage(data *service.GroupData) templ.Component {
	g := data.Group
	return Layout(g.Name+" dashboard", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<header><h1>`)
		out.text(g.Name)
		out.rawf(`</h1><a href="/groups/%s">Back to the bracket</a></header>`, g.ID)

		out.raw(`<section><h2>Members</h2><ul class="members">`)
		for _, m := range data.Members {
			out.raw(`<li>`)
			out.text(m.Nickname)
			if g.IsOwner(m.UserID) {
				out.raw(` <em>owner</em>`)
			}
			out.raw(`</li>`)
		}
		out.rawf(`</ul><p>Invite link: <code>/groups/%s/join</code></p></section>`, g.ID)

		if data.IsOwner {
			out.raw(`<section><h2>Add an album</h2>`)
			out.rawf(`<form hx-post="/groups/%s/brackets">`, g.ID)
			out.raw(`<input name="url" type="url" placeholder="Spotify album or playlist, YouTube playlist" required>`)
			out.raw(`<button type="submit">Add</button></form>`)
			out.rawf(`<p><a href="/spotify/connect?group=%s">Connect Spotify</a> to use your private playlists.</p>`, g.ID)
			out.raw(`</section>`)
		}

		out.raw(`<section><h2>Up next</h2>`)
		if len(data.Pending) == 0 {
			out.raw(`<p class="empty">Nothing queued.</p>`)
		}
		out.raw(`<ul class="brackets">`)
		for _, rec := range data.Pending {
			out.raw(`<li>`)
			out.text(rec.Title())
			out.rawf(` <span>%d tracks</span>`, len(rec.Album.Tracks))
			if data.IsOwner {
				writeStartForm(out, g.ID, &rec)
			} else {
				writeTracklist(out, rec.Album.Tracks)
			}
			out.raw(`</li>`)
		}
		out.raw(`</ul></section>`)

		out.raw(`<section><h2>Past brackets</h2>`)
		if len(data.Archived) == 0 {
			out.raw(`<p class="empty">No finished brackets yet.</p>`)
		}
		out.raw(`<ul class="brackets">`)
		for _, rec := range data.Archived {
			out.raw(`<li>`)
			out.text(rec.Title())
			if rec.Bracket.Champion != nil {
				out.raw(` <span class="champion">`)
				out.text(fmt.Sprintf("won by %s", rec.Bracket.Champion.Name))
				out.raw(`</span>`)
			}
			out.raw(`</li>`)
		}
		out.raw(`</ul></section>`)
		return out.err
	}))
}

func writeTracklist(out *writer, tracks []bracket.Track) {
	out.raw(`<ol class="tracklist">`)
	for _, t := range tracks {
		out.raw(`<li>`)
		out.text(t.Name)
		out.raw(`</li>`)
	}
	out.raw(`</ol>`)
}

// writeStartForm lists the tracks in seeding order. Round one pairs them top
// to bottom, and the owner can move tracks before starting unless the
// bracket is shuffled.
func writeStartForm(out *writer, groupID uuid.UUID, rec *group.BracketRecord) {
	out.rawf(`<form class="setup" hx-post="/groups/%s/brackets/%s/start">`, groupID, rec.ID)
	out.raw(`<ol class="tracklist">`)
	for _, t := range rec.Album.Tracks {
		out.rawf(`<li><input type="hidden" name="order" value="%s"><span>`, attr(t.ID))
		out.text(t.Name)
		out.raw(`</span> <button type="button" class="move" onclick="var li=this.parentNode;if(li.previousElementSibling){li.parentNode.insertBefore(li,li.previousElementSibling)}">Move up</button></li>`)
	}
	out.raw(`</ol>`)
	out.raw(`<label><input type="checkbox" name="shuffle" value="true"> Shuffle instead</label>`)
	out.raw(`<button type="submit">Start</button></form>`)
}
