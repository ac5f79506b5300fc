package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/ppiankov/communitysurf/internal/fetch"
	"github.com/ppiankov/communitysurf/internal/post"
)

const maxTitle = 100

// TerminalFormatter formats a feed for terminal output.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// ColorFor reports whether f is an interactive terminal that should get
// colors. NO_COLOR disables them.
func ColorFor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (f *TerminalFormatter) Format(w io.Writer, in Input) error {
	v := in.View
	header := fmt.Sprintf("communitysurf — %d posts, sorted by %s", len(v.Posts), v.Sort)
	if v.Hidden > 0 {
		header += fmt.Sprintf(", %d filtered out", v.Hidden)
	}
	fmt.Fprintln(w, f.bold(header))

	for _, st := range in.Statuses {
		fmt.Fprintf(w, "  %s\n", f.status(st, in))
	}
	fmt.Fprintln(w)

	if len(v.Posts) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}

	n := in.posts()
	for i, p := range v.Posts[:n] {
		f.writePost(w, i+1, p, in)
	}
	if n < len(v.Posts) {
		fmt.Fprintln(w, f.dim(fmt.Sprintf("... %d more", len(v.Posts)-n)))
	}
	return nil
}

func (f *TerminalFormatter) status(st fetch.Status, in Input) string {
	line := fmt.Sprintf("%-7s %s", st.Source, st.State)
	switch st.State {
	case fetch.Success:
		line += fmt.Sprintf(" (%d posts", st.Count)
		if st.FromCache {
			line += ", cached"
		}
		line += ", " + humanize.RelTime(st.LastSuccess, in.Now, "ago", "from now") + ")"
		return f.green(line)
	case fetch.Failed:
		return f.red(line + ": " + st.Error)
	}
	return f.dim(line)
}

func (f *TerminalFormatter) writePost(w io.Writer, n int, p post.Post, in Input) {
	title := p.Title
	if title == "" {
		title = p.Content
	}
	title = truncate(strings.Join(strings.Fields(title), " "), maxTitle)

	label := ""
	if p.PrimaryClassification != "" {
		label = " [" + p.PrimaryClassification + "]"
	}

	fmt.Fprintf(w, "%3d. %s %s%s\n", n, f.yellow("["+string(p.Source)+"]"), f.bold(title), f.dim(label))

	var meta []string
	if p.Author != "" {
		meta = append(meta, "@"+p.Author)
	}
	if p.Subreddit != "" {
		meta = append(meta, "r/"+p.Subreddit)
	}
	if p.Created != nil {
		meta = append(meta, humanize.RelTime(post.Normalize(p), in.Now, "ago", "from now"))
	}
	meta = append(meta, engagement(p))
	fmt.Fprintf(w, "     %s\n", f.dim(strings.Join(meta, " · ")))
	if p.URL != "" {
		fmt.Fprintf(w, "     %s\n", f.dim(p.URL))
	}
}

func engagement(p post.Post) string {
	parts := []string{fmt.Sprintf("%s points", humanize.Comma(int64(p.Points())))}
	parts = append(parts, fmt.Sprintf("%s comments", humanize.Comma(int64(p.Comments()))))
	if p.Retweets != nil {
		parts = append(parts, fmt.Sprintf("%s reposts", humanize.Comma(int64(*p.Retweets))))
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) paint(code, s string) string {
	if !f.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (f *TerminalFormatter) bold(s string) string   { return f.paint("1", s) }
func (f *TerminalFormatter) green(s string) string  { return f.paint("32", s) }
func (f *TerminalFormatter) yellow(s string) string { return f.paint("33", s) }
func (f *TerminalFormatter) red(s string) string    { return f.paint("31", s) }
func (f *TerminalFormatter) dim(s string) string    { return f.paint("2", s) }
