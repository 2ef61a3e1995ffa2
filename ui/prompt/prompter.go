package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/ui/common"
	"github.com/skip2/go-qrcode"
)

// Prompter shows prompts in a Tea program. Prompts shown while another one
// is open are stacked on top of it; the program exits once every prompt is
// settled.
type Prompter struct {
	opts []tea.ProgramOption

	mu      sync.Mutex
	nextID  int
	prog    *tea.Program
	open    map[int]*entry
	running chan struct{}
}

// NewPrompter returns a Prompter running its programs with opts.
func NewPrompter(opts ...tea.ProgramOption) *Prompter {
	return &Prompter{
		opts: opts,
		open: make(map[int]*entry),
	}
}

// Prompt shows args until the returned Cancelable is settled, by the caller
// or by the user dismissing it.
func (p *Prompter) Prompt(ctx context.Context, args proto.PromptArgs) *proto.Cancelable {
	c := proto.NewCancelable()

	p.mu.Lock()
	p.nextID++
	e := newEntry(p.nextID, args, c)
	p.open[e.id] = e
	prog := p.prog
	if prog == nil {
		prog = p.start(e)
	} else {
		go prog.Send(pushMsg{e})
	}
	p.mu.Unlock()

	go func() {
		select {
		case <-c.Done():
		case <-ctx.Done():
			c.Reject(ctx.Err())
		}
		p.settled(prog, e)
	}()
	return c
}

// start must be called with mu held.
func (p *Prompter) start(e *entry) *tea.Program {
	prog := tea.NewProgram(newModel(e), p.opts...)
	prev := p.running
	running := make(chan struct{})
	p.prog = prog
	p.running = running
	go func() {
		defer close(running)
		if prev != nil {
			// Let the previous program give the terminal back first.
			<-prev
		}
		if _, err := prog.Run(); err != nil {
			log.Error("prompt failed", "err", err)
			p.abort(prog, err)
			return
		}
		p.mu.Lock()
		if p.prog == prog {
			p.prog = nil
		}
		p.mu.Unlock()
	}()
	return prog
}

func (p *Prompter) settled(prog *tea.Program, e *entry) {
	p.mu.Lock()
	delete(p.open, e.id)
	quit := len(p.open) == 0 && p.prog == prog
	if quit {
		p.prog = nil
	}
	p.mu.Unlock()

	// Sending blocks until the program reads the message, so never under mu.
	prog.Send(settledMsg{e.id})
	if quit {
		prog.Quit()
	}
}

// abort rejects the prompts of a program that failed.
func (p *Prompter) abort(prog *tea.Program, err error) {
	p.mu.Lock()
	var pending []*entry
	for _, e := range p.open {
		pending = append(pending, e)
	}
	if p.prog == prog {
		p.prog = nil
	}
	p.mu.Unlock()
	for _, e := range pending {
		e.c.Reject(fmt.Errorf("could not show prompt: %w", err))
	}
}

// Text writes prompts to a writer as plain text. It never settles a prompt
// itself; use it where there is no terminal to interact with.
type Text struct {
	mu sync.Mutex
	w  io.Writer
}

// NewText returns a Text prompter writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// Prompt writes args out.
func (t *Text) Prompt(_ context.Context, args proto.PromptArgs) *proto.Cancelable {
	var b strings.Builder
	b.WriteString(args.Title)
	b.WriteString("\n\n")
	if args.Body != "" {
		b.WriteString(common.Wrap(args.Body))
		b.WriteString("\n\n")
	}
	for _, el := range args.Elements {
		switch el.Type {
		case proto.ElementQR:
			if q, err := qrcode.New(el.Data, qrcode.Low); err == nil {
				b.WriteString(q.ToSmallString(false))
				b.WriteString("\n")
			}
		case proto.ElementLink:
			fmt.Fprintf(&b, "%s: %s\n\n", el.Label, el.Href)
		case proto.ElementCountdown:
			fmt.Fprintf(&b, "%s (expires %s)\n\n", el.Label, el.End.Local().Format("15:04:05"))
		}
	}
	t.mu.Lock()
	_, _ = io.WriteString(t.w, b.String())
	t.mu.Unlock()
	return proto.NewCancelable()
}
