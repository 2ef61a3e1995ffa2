package proto

import (
	"context"
	"sync"
	"time"
)

// PromptElementType is the kind of a prompt element.
type PromptElementType string

// Prompt element types.
const (
	ElementQR        PromptElementType = "qr"
	ElementLink      PromptElementType = "link"
	ElementButton    PromptElementType = "button"
	ElementCountdown PromptElementType = "countdown"
)

// PromptElement is a single display directive of a prompt.
type PromptElement struct {
	Type    PromptElementType
	Label   string
	Data    string    // qr
	Href    string    // link
	End     time.Time // countdown
	OnClick func()    // button
}

// QR returns a qr element.
func QR(data string) PromptElement {
	return PromptElement{Type: ElementQR, Data: data}
}

// Link returns a link element.
func Link(href, label string) PromptElement {
	return PromptElement{Type: ElementLink, Href: href, Label: label}
}

// Button returns a button element.
func Button(label string, onClick func()) PromptElement {
	return PromptElement{Type: ElementButton, Label: label, OnClick: onClick}
}

// Countdown returns a countdown element.
func Countdown(label string, end time.Time) PromptElement {
	return PromptElement{Type: ElementCountdown, Label: label, End: end}
}

// PromptArgs describes a prompt to display.
type PromptArgs struct {
	Title    string
	Body     string
	Elements []PromptElement
}

// Prompter displays prompts to the user. Implementations must dismiss the
// prompt once the returned Cancelable is settled.
type Prompter interface {
	Prompt(ctx context.Context, args PromptArgs) *Cancelable
}

// Cancelable is the pending answer of a prompt. It settles exactly once,
// either by Resolve, Reject, or Cancel.
type Cancelable struct {
	once  sync.Once
	done  chan struct{}
	value interface{}
	err   error
}

// NewCancelable returns an unsettled Cancelable.
func NewCancelable() *Cancelable {
	return &Cancelable{done: make(chan struct{})}
}

func (c *Cancelable) settle(v interface{}, err error) bool {
	settled := false
	c.once.Do(func() {
		c.value = v
		c.err = err
		close(c.done)
		settled = true
	})
	return settled
}

// Resolve settles the prompt with a value. It reports whether this call
// settled it.
func (c *Cancelable) Resolve(v interface{}) bool {
	return c.settle(v, nil)
}

// Reject settles the prompt with an error.
func (c *Cancelable) Reject(err error) bool {
	return c.settle(nil, err)
}

// Cancel settles the prompt with a CanceledError carrying reason.
func (c *Cancelable) Cancel(reason string) bool {
	return c.settle(nil, CanceledError{Reason: reason})
}

// Done is closed once the prompt is settled.
func (c *Cancelable) Done() <-chan struct{} {
	return c.done
}

// Err returns the error the prompt settled with, if any.
func (c *Cancelable) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the prompt is settled or ctx is done.
func (c *Cancelable) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
