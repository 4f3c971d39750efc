package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/studyspace/internal/recent"
	"github.com/thywilljoshua/studyspace/internal/study"
)

type printNotifier struct{ w io.Writer }

func (n printNotifier) Notify(message string) {
	fmt.Fprintf(n.w, "[notice] %s\n", message)
}

func studyCmd(cfgPath *string) *cobra.Command {
	var token string
	var exportDir string
	var resume bool

	cmd := &cobra.Command{
		Use:   "study",
		Short: "Open an interactive study session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.openStore(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sess := a.session(printNotifier{out}, exportDir)
			if token != "" {
				sess.SetToken(token)
			}
			ctx := cmd.Context()
			sess.Restore(ctx)
			if resume {
				if ok, err := sess.Resume(ctx); err != nil {
					fmt.Fprintln(out, "could not reopen last document:", err)
				} else if ok {
					printStatus(out, sess.Snapshot())
				}
			}
			r := &repl{sess: sess, recents: recent.NewTracker(a.store), out: out}
			return r.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token for the chat endpoint (default STUDY_TOKEN)")
	cmd.Flags().StringVar(&exportDir, "export-dir", "notes", "directory for exported notes")
	cmd.Flags().BoolVar(&resume, "resume", false, "reopen the last document at its saved page")
	return cmd
}

type repl struct {
	sess    *study.Session
	recents *recent.Tracker
	out     io.Writer
}

const help = `commands:
  open pdf|video|text <source> [title]   load a document
  next | prev | goto <n>                 page navigation
  zoom-in | zoom-out                     adjust zoom
  ask <message>                          chat about the document (bare text works too)
  summarize [text]                       summarize the document or the given text
  tab chat|summary|tools                 switch AI panel tab
  theme | panel                          toggle theme or AI panel
  tool <name>                            run a tool (export)
  recent | status | help | quit`

func (r *repl) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Fprint(r.out, "> ")
	for sc.Scan() {
		if !r.exec(ctx, sc.Text()) {
			return nil
		}
		fmt.Fprint(r.out, "> ")
	}
	return sc.Err()
}

// exec runs one command line and reports whether the session continues.
func (r *repl) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "quit", "exit":
		return false
	case "help":
		fmt.Fprintln(r.out, help)
	case "open":
		r.open(ctx, rest)
	case "next":
		r.nav(r.sess.NextPage(ctx))
	case "prev":
		r.nav(r.sess.PrevPage(ctx))
	case "goto":
		n, err := strconv.Atoi(rest)
		if err != nil {
			fmt.Fprintln(r.out, "usage: goto <n>")
			return true
		}
		r.nav(r.sess.GoToPage(ctx, n))
	case "zoom-in":
		r.sess.ZoomIn(ctx)
		fmt.Fprintf(r.out, "zoom %.1f\n", r.sess.Snapshot().Zoom)
	case "zoom-out":
		r.sess.ZoomOut(ctx)
		fmt.Fprintf(r.out, "zoom %.1f\n", r.sess.Snapshot().Zoom)
	case "ask":
		r.ask(ctx, rest)
	case "summarize":
		fmt.Fprintln(r.out, r.sess.Summarize(ctx, rest))
	case "tab":
		if !r.sess.SwitchTab(study.Tab(rest)) {
			fmt.Fprintln(r.out, "usage: tab chat|summary|tools")
		}
	case "theme":
		fmt.Fprintln(r.out, "theme", r.sess.ToggleTheme(ctx))
	case "panel":
		fmt.Fprintln(r.out, "panel open:", r.sess.TogglePanel())
	case "tool":
		if path, err := r.sess.OpenTool(rest); err != nil {
			fmt.Fprintln(r.out, "tool failed:", err)
		} else if path != "" {
			fmt.Fprintln(r.out, path)
		}
	case "recent":
		b, _ := json.MarshalIndent(r.recents.List(ctx), "", "  ")
		fmt.Fprintln(r.out, string(b))
	case "status":
		printStatus(r.out, r.sess.Snapshot())
	default:
		r.ask(ctx, line)
	}
	return true
}

func (r *repl) open(ctx context.Context, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		fmt.Fprintln(r.out, "usage: open pdf|video|text <source> [title]")
		return
	}
	kind := study.Kind(fields[0])
	source := fields[1]
	title := source
	if len(fields) > 2 {
		title = strings.Join(fields[2:], " ")
	}
	if kind == study.KindText {
		// text documents take the rest of the line verbatim
		source = strings.TrimSpace(strings.TrimPrefix(args, fields[0]))
		title = source
	}
	if err := r.sess.LoadDocument(ctx, study.Descriptor{Kind: kind, Source: source, Title: title}); err != nil {
		fmt.Fprintln(r.out, "open failed:", err)
		return
	}
	printStatus(r.out, r.sess.Snapshot())
}

func (r *repl) nav(changed bool) {
	if !changed {
		return
	}
	s := r.sess.Snapshot()
	fmt.Fprintf(r.out, "page %d/%d\n", s.CurrentPage, s.TotalPages)
}

func (r *repl) ask(ctx context.Context, msg string) {
	if e, ok := r.sess.Send(ctx, msg); ok {
		fmt.Fprintln(r.out, "AI:", e.Content)
	}
}

func printStatus(w io.Writer, s study.Snapshot) {
	if s.Document == nil {
		fmt.Fprintln(w, "no document open")
		return
	}
	fmt.Fprintf(w, "%s [%s]", s.Document.Title, s.Document.Kind)
	switch s.Document.Kind {
	case study.KindPDF:
		fmt.Fprintf(w, " page %d/%d zoom %.1f", s.CurrentPage, s.TotalPages, s.Zoom)
	case study.KindVideo:
		fmt.Fprintf(w, " %s", s.EmbedURL)
	}
	fmt.Fprintf(w, " tab=%s theme=%s\n", s.Tab, s.Theme)
	if s.Document.Kind == study.KindText {
		fmt.Fprintln(w, s.TextHTML)
	}
}
