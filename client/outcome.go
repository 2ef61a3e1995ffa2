package client

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/race"
	"github.com/protonlink/webauth/relay"
)

// Messages the prompt is cancelled with.
const (
	msgInvalidResponse = "Invalid response from WebAuth."
	msgExpired         = "The request expired, please try again."
	msgNotCompleted    = "The request was not completed."
	msgNoUI            = "No UI available"
	msgCallerCanceled  = "The request was canceled."
)

type via int

const (
	viaRelay via = iota + 1
	viaPopup
	// viaPrompt is a prompt that was answered instead of dismissed.
	viaPrompt
)

// outcome is whichever source won a login or sign race. Exactly one of
// payload, auth or result is meaningful, depending on via.
type outcome struct {
	via     via
	payload *proto.CallbackPayload
	auth    proto.PermissionLevel
	result  *proto.PopupTransactionResult
}

func (o outcome) signatures() []string {
	switch o.via {
	case viaRelay:
		if o.payload != nil {
			return o.payload.Signatures()
		}
	case viaPopup:
		if o.result != nil {
			return o.result.Signatures
		}
	}
	return nil
}

func relaySource(w relay.Waiter, addr proto.ChannelAddress) race.Source[outcome] {
	return func(ctx context.Context) (outcome, error) {
		p, err := w.Wait(ctx, addr)
		if err != nil {
			return outcome{}, transportError(err)
		}
		return outcome{via: viaRelay, payload: p}, nil
	}
}

// listen connects to the channel before the wallet can answer on it. A
// failure only costs the head start; Wait connects on its own.
func listen(ctx context.Context, w relay.Waiter, addr proto.ChannelAddress) func() {
	l, ok := w.(relay.Listener)
	if !ok {
		return func() {}
	}
	release, err := l.Listen(ctx, addr)
	if err != nil {
		log.Warn("could not connect to relay channel", "channel", addr.Channel, "err", err)
		return func() {}
	}
	return release
}

// promptSource settles once the user dismisses the prompt. An answered
// prompt only settles the race when answers is set.
func promptSource(p *proto.Cancelable, answers bool) race.Source[outcome] {
	return func(ctx context.Context) (outcome, error) {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return outcome{}, ctx.Err()
		}
		if err := p.Err(); err != nil {
			if errors.Is(err, proto.ErrCanceled) {
				return outcome{}, err
			}
			return outcome{}, proto.CanceledError{Reason: err.Error(), Err: err}
		}
		if answers {
			return outcome{via: viaPrompt}, nil
		}
		<-ctx.Done()
		return outcome{}, ctx.Err()
	}
}

// transportError translates popup and relay failures into the errors callers
// handle. Errors that already are one of those pass through.
func transportError(err error) error {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, proto.ErrContext),
		errors.Is(err, proto.ErrProtocol),
		errors.Is(err, proto.ErrCanceled),
		errors.Is(err, proto.ErrTimeout),
		errors.Is(err, proto.ErrSuperseded):
		return err
	}
	return proto.ProtocolError{Reason: err.Error(), Err: err}
}

// callerError reports the caller giving up on a login or sign as a
// cancellation, or as a timeout when its deadline passed.
func callerError(err error) error {
	switch {
	case errors.Is(err, proto.ErrCanceled), errors.Is(err, proto.ErrTimeout):
		return err
	case errors.Is(err, context.Canceled):
		return proto.CanceledError{Reason: msgCallerCanceled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return proto.TimeoutError{Reason: msgExpired}
	}
	return err
}

// fail dismisses the prompt with the error's message before returning it.
func fail(p *proto.Cancelable, err error) error {
	if p != nil {
		p.Cancel(err.Error())
	}
	return err
}
