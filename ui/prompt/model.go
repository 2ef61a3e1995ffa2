// Package prompt shows wallet prompts in the terminal: QR codes to scan,
// links to open, buttons and a countdown, with a spinner while waiting.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/indent"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/ui/common"
	"github.com/skip2/go-qrcode"
)

// CanceledByUser is the reason of prompts dismissed with esc or ctrl+c.
const CanceledByUser = "Canceled by user"

type (
	pushMsg    struct{ e *entry }
	settledMsg struct{ id int }
	tickMsg    time.Time
)

// entry is a prompt on the stack. Only the top one is shown.
type entry struct {
	id     int
	args   proto.PromptArgs
	c      *proto.Cancelable
	qr     string
	button int
}

func newEntry(id int, args proto.PromptArgs, c *proto.Cancelable) *entry {
	e := &entry{id: id, args: args, c: c}
	for _, el := range args.Elements {
		if el.Type != proto.ElementQR {
			continue
		}
		q, err := qrcode.New(el.Data, qrcode.Low)
		if err != nil {
			e.qr = fmt.Sprintf("could not render qr code: %s", err)
			continue
		}
		e.qr = q.ToSmallString(false)
	}
	return e
}

func (e *entry) buttons() []proto.PromptElement {
	var bs []proto.PromptElement
	for _, el := range e.args.Elements {
		if el.Type == proto.ElementButton {
			bs = append(bs, el)
		}
	}
	return bs
}

// Model is the tea model of the prompt stack.
type Model struct {
	styles  common.Styles
	stack   []*entry
	spinner spinner.Model
	now     func() time.Time
}

// newModel returns a model showing the given prompts, the last one on top.
func newModel(entries ...*entry) Model {
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(common.DefaultStyles().Subtle),
	)
	return Model{
		styles:  common.DefaultStyles(),
		stack:   entries,
		spinner: sp,
		now:     time.Now,
	}
}

// Init starts the spinner and the countdown clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles key presses and prompt stack changes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case pushMsg:
		// Prompts settled before they made it here are skipped.
		select {
		case <-msg.e.c.Done():
			return m, nil
		default:
		}
		m.stack = append(m.stack, msg.e)
		return m, nil

	case settledMsg:
		for i, e := range m.stack {
			if e.id == msg.id {
				m.stack = append(m.stack[:i:i], m.stack[i+1:]...)
				break
			}
		}
		return m, nil

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	top := m.top()
	switch msg.String() {
	case "ctrl+c":
		for _, e := range m.stack {
			e.c.Cancel(CanceledByUser)
		}
		return m, tea.Quit
	case "esc", "q":
		if top != nil {
			top.c.Cancel(CanceledByUser)
		}
	case "tab", "right", "l":
		if top != nil && len(top.buttons()) > 0 {
			top.button = (top.button + 1) % len(top.buttons())
		}
	case "shift+tab", "left", "h":
		if top != nil && len(top.buttons()) > 0 {
			n := len(top.buttons())
			top.button = (top.button + n - 1) % n
		}
	case "enter", " ":
		if top == nil {
			break
		}
		bs := top.buttons()
		if len(bs) == 0 || bs[top.button].OnClick == nil {
			break
		}
		// Buttons may show prompts of their own.
		onClick := bs[top.button].OnClick
		return m, func() tea.Msg {
			onClick()
			return nil
		}
	}
	return m, nil
}

func (m Model) top() *entry {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// View renders the prompt on top of the stack.
func (m Model) View() string {
	e := m.top()
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Logo.String())
	b.WriteString(" ")
	b.WriteString(m.styles.Title.Render(e.args.Title))
	b.WriteString("\n\n")
	if e.args.Body != "" {
		b.WriteString(common.Wrap(e.args.Body))
		b.WriteString("\n\n")
	}
	for _, el := range e.args.Elements {
		switch el.Type {
		case proto.ElementQR:
			b.WriteString(e.qr)
			b.WriteString("\n")
		case proto.ElementLink:
			b.WriteString(m.styles.Label.Render(el.Label))
			b.WriteString(": ")
			b.WriteString(m.styles.Link.Render(el.Href))
			b.WriteString("\n\n")
		case proto.ElementCountdown:
			b.WriteString(m.spinner.View())
			b.WriteString(" ")
			b.WriteString(el.Label)
			b.WriteString(" ")
			b.WriteString(m.styles.Keyword.Render(remaining(el.End, m.now())))
			b.WriteString("\n\n")
		}
	}
	if bs := e.buttons(); len(bs) > 0 {
		views := make([]string, 0, len(bs))
		for i, btn := range bs {
			st := m.styles.Button
			if i == e.button {
				st = m.styles.FocusedButton
			}
			views = append(views, st.Render(btn.Label))
		}
		b.WriteString(strings.Join(views, " "))
		b.WriteString("\n")
	}
	help := "esc: cancel"
	if len(e.buttons()) > 0 {
		help = "tab: select • enter: press • " + help
	}
	b.WriteString(common.HelpView(help))
	return indent.String(b.String(), 2) + "\n"
}

// remaining renders the time left until end as m:ss.
func remaining(end, now time.Time) string {
	d := end.Sub(now).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
