package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aussiebroadwan/backoffice/internal/console/cachepage"
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

type cacheInputMode int

const (
	cacheInputNone cacheInputMode = iota
	cacheInputFilter
	cacheInputPattern
)

type cacheDoneMsg struct {
	err error
}

type cacheModel struct {
	page    *cachepage.Page
	cursor  int
	mode    cacheInputMode
	input   textinput.Model
	loading bool
	err     string
}

func newCacheModel(page *cachepage.Page) cacheModel {
	in := textinput.New()
	in.CharLimit = 256
	in.Width = 40
	return cacheModel{page: page, input: in}
}

func (c *cacheModel) refreshCmd(ctx context.Context) tea.Cmd {
	c.loading = true
	page := c.page
	return func() tea.Msg {
		return cacheDoneMsg{err: page.Refresh(ctx)}
	}
}

func (c cacheModel) confirmCmd(ctx context.Context) tea.Cmd {
	page := c.page
	return func() tea.Msg {
		return cacheDoneMsg{err: page.Confirm(ctx)}
	}
}

func (c cacheModel) done(msg cacheDoneMsg) cacheModel {
	c.loading = false
	c.err = ""
	if msg.err != nil {
		c.err = adminsdk.Message(msg.err)
	}
	if n := len(c.page.Visible()); c.cursor >= n {
		c.cursor = max(n-1, 0)
	}
	return c
}

// capturing is true while a text field or a confirmation owns the keyboard.
func (c cacheModel) capturing() bool {
	if c.mode != cacheInputNone {
		return true
	}
	_, pending := c.page.Pending()
	return pending
}

func (c cacheModel) selected() (cachepage.Row, bool) {
	rows := c.page.Visible()
	if c.cursor < 0 || c.cursor >= len(rows) {
		return cachepage.Row{}, false
	}
	return rows[c.cursor], true
}

func (c cacheModel) update(ctx context.Context, msg tea.KeyMsg) (cacheModel, tea.Cmd) {
	if _, pending := c.page.Pending(); pending {
		switch msg.String() {
		case "y", "enter":
			c.loading = true
			return c, c.confirmCmd(ctx)
		case "n", "esc":
			c.page.CancelPending()
		}
		return c, nil
	}

	if c.mode != cacheInputNone {
		return c.updateInput(ctx, msg)
	}

	switch msg.String() {
	case "up", "k":
		if c.cursor > 0 {
			c.cursor--
		}
	case "down", "j":
		if c.cursor < len(c.page.Visible())-1 {
			c.cursor++
		}
	case "enter":
		if row, ok := c.selected(); ok {
			c.page.ToggleExpand(row.Key)
		}
	case "/":
		c.startInput(cacheInputFilter, "key prefix", c.page.Filter())
		return c, textinput.Blink
	case "m":
		c.startInput(cacheInputPattern, "pattern, e.g. session:*", c.page.Pattern())
		return c, textinput.Blink
	case "r":
		cmd := c.refreshCmd(ctx)
		return c, cmd
	case "d":
		if row, ok := c.selected(); ok {
			if err := c.page.RequestDelete(row.Key); err != nil {
				c.err = err.Error()
			}
		}
	case "D":
		if c.page.TotalKeys() > 0 {
			c.page.RequestDeleteAll()
		}
	}
	return c, nil
}

func (c *cacheModel) startInput(mode cacheInputMode, placeholder, value string) {
	c.mode = mode
	c.input.Placeholder = placeholder
	c.input.SetValue(value)
	c.input.Focus()
}

func (c cacheModel) updateInput(ctx context.Context, msg tea.KeyMsg) (cacheModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		c.mode = cacheInputNone
		c.input.Blur()
		return c, nil
	case "enter":
		mode := c.mode
		c.mode = cacheInputNone
		c.input.Blur()
		if mode == cacheInputPattern {
			c.page.SetPattern(strings.TrimSpace(c.input.Value()))
			c.cursor = 0
			cmd := c.refreshCmd(ctx)
			return c, cmd
		}
		return c, nil
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	if c.mode == cacheInputFilter {
		// The prefix filter is local and applies as you type.
		c.page.SetFilter(c.input.Value())
		c.cursor = 0
	}
	return c, cmd
}

func (c cacheModel) view() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Cache") + "\n")
	rows := c.page.Visible()
	pattern := c.page.Pattern()
	if pattern == "" {
		pattern = "*"
	}
	fmt.Fprintf(&b, "%s\n\n", helpStyle.Render(fmt.Sprintf("pattern %s  •  %d of %d keys", pattern, len(rows), c.page.TotalKeys())))

	switch c.mode {
	case cacheInputFilter:
		b.WriteString("Filter: " + c.input.View() + "\n\n")
	case cacheInputPattern:
		b.WriteString("Pattern: " + c.input.View() + "\n\n")
	default:
		if f := c.page.Filter(); f != "" {
			b.WriteString(helpStyle.Render("filter "+f) + "\n\n")
		}
	}

	if len(rows) == 0 && !c.loading {
		b.WriteString("No keys\n")
	}
	for i, r := range rows {
		line := fmt.Sprintf("%-32s %-10s %s", r.Key, r.TTL, r.Value)
		if i == c.cursor {
			b.WriteString(selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString(line + "\n")
		}
	}

	if act, ok := c.page.Pending(); ok {
		b.WriteString("\n" + errorStyle.Render(act.Prompt(c.page.TotalKeys())) + "  [y/n]\n")
	}
	if c.loading {
		b.WriteString("\n" + helpStyle.Render("Loading…") + "\n")
	}
	if c.err != "" {
		b.WriteString("\n" + errorStyle.Render(c.err) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c cacheModel) help() string {
	if c.mode != cacheInputNone {
		return "enter apply  •  esc cancel"
	}
	return "↑/↓ move  •  enter expand  •  / filter  •  m pattern  •  r refresh  •  d delete  •  D delete all"
}
