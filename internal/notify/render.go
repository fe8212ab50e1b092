package notify

import (
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/domain"
)

type Kind string

const (
	KindNew      Kind = "new"
	KindOngoing  Kind = "ongoing"
	KindPing     Kind = "ping"
	KindResolved Kind = "resolved"
	KindMuted    Kind = "muted"
)

const defaultSummary = "{{.Title}}: {{.Headline}}"

// Message is a rendered notification, independent of the transport.
type Message struct {
	Kind    Kind
	Title   string
	Summary string
	Lines   []string
	Links   []domain.Link
	prefix  string
	postfix string
}

// Headline is the summary with the template prefix in front.
func (m Message) Headline() string {
	if m.prefix == "" {
		return m.Summary
	}
	return m.prefix + " " + m.Summary
}

// Body renders everything below the headline as plain text.
func (m Message) Body() string {
	var parts []string
	for _, l := range m.Lines {
		parts = append(parts, "- "+l)
	}
	for _, l := range m.Links {
		parts = append(parts, l.Label+": "+l.URL)
	}
	if m.postfix != "" {
		parts = append(parts, m.postfix)
	}
	return strings.Join(parts, "\n")
}

// HeadlineOnly drops everything below the headline.
func (m Message) HeadlineOnly() Message {
	m.Lines, m.Links, m.postfix = nil, nil, ""
	return m
}

// Plain renders the whole message as plain text.
func (m Message) Plain() string {
	body := m.Body()
	if body == "" {
		return m.Headline()
	}
	return m.Headline() + "\n" + body
}

// HTML renders the message for chat APIs that accept HTML markup.
func (m Message) HTML() string {
	var b strings.Builder
	if m.prefix != "" {
		b.WriteString(html.EscapeString(m.prefix) + "\n")
	}
	b.WriteString("<b>" + html.EscapeString(m.Summary) + "</b>")
	for _, l := range m.Lines {
		b.WriteString("\n• " + html.EscapeString(l))
	}
	for _, l := range m.Links {
		fmt.Fprintf(&b, "\n<a href=\"%s\">%s</a>", html.EscapeString(l.URL), html.EscapeString(l.Label))
	}
	if m.postfix != "" {
		b.WriteString("\n" + html.EscapeString(m.postfix))
	}
	return b.String()
}

type summaryData struct {
	Kind     Kind
	Title    string
	Count    int
	Duration time.Duration
	Headline string
}

// Renderer turns alert states into messages using a channel template.
type Renderer struct {
	title   string
	tmpl    config.Template
	summary *template.Template
	tc      domain.TimeContext
}

func NewRenderer(title string, tmpl config.Template, tc domain.TimeContext) (*Renderer, error) {
	src := tmpl.Summary
	if src == "" {
		src = defaultSummary
	}
	t, err := template.New("summary").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse summary template: %w", err)
	}
	if title == "" {
		title = "watchdog"
	}
	return &Renderer{title: title, tmpl: tmpl, summary: t, tc: tc}, nil
}

func (r *Renderer) Now() time.Time { return r.tc.Now() }

func (r *Renderer) New(snapshots []domain.Snapshot, state *domain.AlertState) Message {
	head := fmt.Sprintf("outage started, %s failing", plural(len(snapshots), "check"))
	return r.build(KindNew, len(snapshots), state, head, r.snapshotLines(snapshots), collectLinks(snapshots))
}

func (r *Renderer) Ongoing(snapshots []domain.Snapshot, state *domain.AlertState) Message {
	d := r.elapsed(state)
	head := fmt.Sprintf("outage ongoing for %s, %s failing", formatDuration(d), plural(len(snapshots), "check"))
	return r.build(KindOngoing, len(snapshots), state, head, r.snapshotLines(snapshots), collectLinks(snapshots))
}

func (r *Renderer) Ping(snapshots []domain.Snapshot, state *domain.AlertState) Message {
	head := fmt.Sprintf("still failing, %s", plural(len(snapshots), "check"))
	return r.build(KindPing, len(snapshots), state, head, nil, nil)
}

func (r *Renderer) Resolved(state *domain.AlertState) Message {
	d := r.elapsed(state)
	head := fmt.Sprintf("outage resolved after %s", formatDuration(d))
	return r.build(KindResolved, state.Affected.Len(), state, head, r.affectedLines(state), nil)
}

func (r *Renderer) Muted(state *domain.AlertState) Message {
	head := "alerts muted by a maintenance window"
	return r.build(KindMuted, state.Affected.Len(), state, head, r.affectedLines(state), nil)
}

func (r *Renderer) build(kind Kind, count int, state *domain.AlertState, headline string, lines []string, links []domain.Link) Message {
	data := summaryData{Kind: kind, Title: r.title, Count: count, Duration: r.elapsed(state), Headline: headline}
	var b strings.Builder
	summary := r.title + ": " + headline
	if err := r.summary.Execute(&b, data); err == nil {
		summary = b.String()
	}
	return Message{
		Kind:    kind,
		Title:   r.title,
		Summary: summary,
		Lines:   lines,
		Links:   links,
		prefix:  r.tmpl.Prefix,
		postfix: r.tmpl.Postfix,
	}
}

func (r *Renderer) elapsed(state *domain.AlertState) time.Duration {
	start := state.EarliestDate()
	if start.IsZero() {
		return 0
	}
	d := r.tc.Now().Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

func (r *Renderer) snapshotLines(snapshots []domain.Snapshot) []string {
	out := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, fmt.Sprintf("%s: %s (since %s)", s.Key(), s.LastResult, r.tc.Format(s.Date)))
	}
	return out
}

func (r *Renderer) affectedLines(state *domain.AlertState) []string {
	keys := state.Affected.Keys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		e, _ := state.Affected.Get(k)
		if e.ResolvedDate != nil {
			out = append(out, fmt.Sprintf("%s: recovered at %s", k, r.tc.Format(*e.ResolvedDate)))
		} else {
			out = append(out, fmt.Sprintf("%s: %s (since %s)", k, e.Result, r.tc.Format(e.Date)))
		}
	}
	return out
}

func collectLinks(snapshots []domain.Snapshot) []domain.Link {
	seen := make(map[string]struct{})
	var out []domain.Link
	for _, s := range snapshots {
		if s.Alert == nil {
			continue
		}
		for _, l := range s.Alert.Links {
			if _, dup := seen[l.URL]; dup {
				continue
			}
			seen[l.URL] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}
	return d.Round(time.Minute).String()
}
