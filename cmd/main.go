package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/readline"
	"github.com/prometheus/client_golang/prometheus"

	diary "github.com/dai175/smart-photo-diary-sub001"
	"github.com/dai175/smart-photo-diary-sub001/enrichment"
	"github.com/dai175/smart-photo-diary-sub001/store"
	"github.com/dai175/smart-photo-diary-sub001/utils"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("create"),
	readline.PcItem("past"),
	readline.PcItem("list"),
	readline.PcItem("search"),
	readline.PcItem("page"),
	readline.PcItem("show"),
	readline.PcItem("update"),
	readline.PcItem("delete"),
	readline.PcItem("watch"),
	readline.PcItem("stats"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

const help = `create <date> <title> -- <content...>   create an entry (date: 2006-01-02 or "today")
past <date> <title> -- <content...>     create an entry for a past photo day
list [asc]                              all entries by date
search <text...>                        full-text search
page <offset> <limit> [text...]         paginated search
show <id-prefix>                        entry details
update <id-prefix> <date|-> <title> -- <content...>
                                        update an entry ("-" keeps the date)
delete <id-prefix>                      delete an entry
watch                                   print change events as they happen
stats                                   print engine and store metrics
exit`

func parseDay(arg string) (time.Time, error) {
	if arg == "today" {
		return time.Now(), nil
	}
	return time.ParseInLocation("2006-01-02", arg, time.Local)
}

func printEntry(e *diary.DiaryEntry, verbose bool) {
	fmt.Printf("%s  %s  %s\n", e.ID[:8], e.Date.Format("2006-01-02"), e.Title)
	if !verbose {
		return
	}
	fmt.Printf("  %s\n", e.Content)
	if len(e.PhotoIDs) > 0 {
		fmt.Printf("  photos: %s\n", strings.Join(e.PhotoIDs, ", "))
	}
	if len(e.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(e.Tags, ", "))
	}
	if e.Location != "" {
		fmt.Printf("  location: %s\n", e.Location)
	}
	fmt.Printf("  created %s, updated %s\n",
		e.CreatedAt.Format(time.RFC3339), e.UpdatedAt.Format(time.RFC3339))
}

// resolve expands an id prefix to a stored entry.
func resolve(ctx context.Context, d *diary.Diary, prefix string) (*diary.DiaryEntry, error) {
	entries, err := d.GetSortedDiaryEntries(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.ID, prefix) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no entry with id %q", prefix)
}

// applyUpdate maps "update" arguments onto a copy of e. The first arg is a
// date or "-" to keep the current one; the rest is <title> -- <content...>,
// where an empty title or content keeps the stored value.
func applyUpdate(e *diary.DiaryEntry, args []string) (*diary.DiaryEntry, error) {
	next := e.Clone()
	if args[0] != "-" {
		day, err := parseDay(args[0])
		if err != nil {
			return nil, err
		}
		next.Date = day
	}
	title, content := splitTitleContent(args[1:])
	if title != "" {
		next.Title = title
	}
	if content != "" {
		next.Content = content
	}
	return next, nil
}

// statsLines renders the diary-prefixed metric families the gatherer holds,
// one line per metric in the text exposition shape.
func statsLines(g prometheus.Gatherer) ([]string, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	lines := []string{}
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, "diary_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			full := name
			if labels := m.GetLabel(); len(labels) > 0 {
				pairs := make([]string, 0, len(labels))
				for _, l := range labels {
					pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
				}
				full += "{" + strings.Join(pairs, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", full, m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", full, m.GetGauge().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%g",
					full, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	return lines, nil
}

func splitTitleContent(args []string) (title, content string) {
	for i, a := range args {
		if a == "--" {
			return strings.Join(args[:i], " "), strings.Join(args[i+1:], " ")
		}
	}
	return strings.Join(args, " "), ""
}

func main() {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "✎ ",
		HistoryFile:     "/tmp/diary-readline.tmp",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	log := utils.NewDefaultLogger(utils.LevelFromEnv())

	var st diary.Store
	if len(os.Args) > 1 {
		ps, err := store.OpenPebble(os.Args[1], store.PebbleOptions{})
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(-1)
		}
		defer ps.Close()
		prometheus.DefaultRegisterer.MustRegister(store.NewPebbleCollector(ps))
		st = ps
	} else {
		fmt.Println("no store directory given, entries will not survive exit")
		st = store.NewMem()
	}
	diary.RegisterMetrics(prometheus.DefaultRegisterer)

	d := diary.New(st, diary.Options{
		Logger:     log,
		Enrichment: &enrichment.Keyword{},
	})
	defer d.Close()

	ctx := context.Background()
	watching := false

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			fmt.Println(help)

		case "create", "past":
			if len(args) < 2 {
				fmt.Println("usage: " + cmd + " <date> <title> -- <content...>")
				continue
			}
			day, err := parseDay(args[0])
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			title, content := splitTitleContent(args[1:])
			var e *diary.DiaryEntry
			if cmd == "past" {
				e, err = d.CreateDiaryForPastPhoto(ctx, day, title, content, nil, "")
			} else {
				e, err = d.SaveDiaryEntry(ctx, day, title, content, nil, "", nil)
			}
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			printEntry(e, false)

		case "list":
			desc := len(args) == 0 || args[0] != "asc"
			entries, err := d.GetSortedDiaryEntries(ctx, desc)
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			for _, e := range entries {
				printEntry(e, false)
			}

		case "search":
			entries, err := d.GetFilteredDiaryEntries(ctx, &diary.DiaryFilter{
				SearchText: strings.Join(args, " "),
			})
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			for _, e := range entries {
				printEntry(e, false)
			}

		case "page":
			if len(args) < 2 {
				fmt.Println("usage: page <offset> <limit> [text...]")
				continue
			}
			offset, err1 := strconv.Atoi(args[0])
			limit, err2 := strconv.Atoi(args[1])
			if err1 != nil || err2 != nil {
				fmt.Println("offset and limit must be numbers")
				continue
			}
			entries, err := d.GetFilteredDiaryEntriesPage(ctx, &diary.DiaryFilter{
				SearchText: strings.Join(args[2:], " "),
			}, offset, limit)
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			for _, e := range entries {
				printEntry(e, false)
			}

		case "show":
			if len(args) != 1 {
				fmt.Println("usage: show <id-prefix>")
				continue
			}
			e, err := resolve(ctx, d, args[0])
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			printEntry(e, true)

		case "update":
			if len(args) < 2 {
				fmt.Println("usage: update <id-prefix> <date|-> <title> -- <content...>")
				continue
			}
			e, err := resolve(ctx, d, args[0])
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			next, err := applyUpdate(e, args[1:])
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			if err := d.UpdateDiaryEntry(ctx, next); err != nil {
				fmt.Println(err.Error())
				continue
			}
			printEntry(next, false)

		case "delete":
			if len(args) != 1 {
				fmt.Println("usage: delete <id-prefix>")
				continue
			}
			e, err := resolve(ctx, d, args[0])
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			if err := d.DeleteDiaryEntry(ctx, e.ID); err != nil {
				fmt.Println(err.Error())
			}

		case "watch":
			if watching {
				fmt.Println("already watching")
				continue
			}
			watching = true
			q := d.Subscribe("cli")
			go func() {
				for {
					changes, err := q.Feed(ctx)
					if err == utils.ErrOverflow {
						fmt.Println("… missed some events")
						continue
					}
					if err != nil {
						return
					}
					for _, c := range changes {
						fmt.Printf("%s %s +%d -%d photos\n", c.Kind, c.EntryID[:8],
							len(c.AddedPhotoIDs), len(c.RemovedPhotoIDs))
					}
				}
			}()

		case "stats":
			lines, err := statsLines(prometheus.DefaultGatherer)
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			for _, ln := range lines {
				fmt.Println(ln)
			}

		case "exit", "quit":
			return

		default:
			fmt.Println("say help")
		}
	}
}
