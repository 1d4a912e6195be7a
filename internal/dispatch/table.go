// Package dispatch routes inbound realtime commands through the
// authenticate, authorize, validate and broadcast pipeline.
package dispatch

import (
	"encoding/json"
	"slices"

	"github.com/pion/webrtc/v4"

	"github.com/vovakirdan/arview-server/internal/proto"
)

type commandKind int

const (
	kindRelay commandKind = iota
	kindJoin
	kindLeave
)

// Command is one row of the dispatch table.
type Command struct {
	Name      string
	Broadcast string

	kind  commandKind
	parse func(raw json.RawMessage) (any, *proto.Error)
}

// Table maps inbound event names to commands. It is immutable after construction.
type Table struct {
	commands map[string]*Command
}

type normalizer interface {
	Normalize() any
}

// schema binds a request type to the validator and returns its parse function.
func schema[R any, PR interface {
	*R
	normalizer
}](v *Validator) func(json.RawMessage) (any, *proto.Error) {
	return func(raw json.RawMessage) (any, *proto.Error) {
		req := PR(new(R))
		if perr := v.Decode(raw, req); perr != nil {
			return nil, perr
		}
		return req.Normalize(), nil
	}
}

// constant ignores the client payload and always broadcasts data.
func constant(data any) func(json.RawMessage) (any, *proto.Error) {
	return func(json.RawMessage) (any, *proto.Error) {
		return data, nil
	}
}

// NewTable builds the command table. iceServers is injected into every
// startStream broadcast.
func NewTable(v *Validator, iceServers []webrtc.ICEServer) *Table {
	stream := proto.StartStreamData{IceServers: make([]proto.ICEServer, 0, len(iceServers))}
	for _, s := range iceServers {
		if len(s.URLs) == 0 {
			continue
		}
		stream.IceServers = append(stream.IceServers, proto.ICEServer{URLs: s.URLs})
	}

	rows := []*Command{
		{Name: proto.EventJoin, Broadcast: proto.EventUserJoined, kind: kindJoin},
		{Name: proto.EventDisconnect, Broadcast: proto.EventUserLeft, kind: kindLeave},
		{Name: proto.EventDraw, Broadcast: proto.EventDrawCommand, parse: schema[proto.DrawRequest](v)},
		{Name: proto.EventLaser, Broadcast: proto.EventLaserCommand, parse: schema[proto.LaserRequest](v)},
		{Name: proto.EventLayerToggle, Broadcast: proto.EventLayerToggleCommand, parse: schema[proto.LayerToggleRequest](v)},
		{Name: proto.EventLayerTransparency, Broadcast: proto.EventLayerTransparencyCommand, parse: schema[proto.LayerTransparencyRequest](v)},
		{Name: proto.EventLockModel, Broadcast: proto.EventLockModelCommand, parse: schema[proto.LockModelRequest](v)},
		{Name: proto.EventRotate, Broadcast: proto.EventRotateCommand, parse: schema[proto.RotateRequest](v)},
		{Name: proto.EventSelectModel, Broadcast: proto.EventSelectModelCommand, parse: schema[proto.SelectModelRequest](v)},
		{Name: proto.EventReset, Broadcast: proto.EventResetCommand, parse: constant(nil)},
		{Name: proto.EventStartStream, Broadcast: proto.EventStartStreamCommand, parse: constant(stream)},
		{Name: proto.EventSendOffer, Broadcast: proto.EventSendOfferMessage, parse: schema[proto.SendOfferRequest](v)},
		{Name: proto.EventSendCandidate, Broadcast: proto.EventSendCandidateMessage, parse: schema[proto.SendCandidateRequest](v)},
		{Name: proto.EventSendCanidate, Broadcast: proto.EventSendCandidateMessage, parse: schema[proto.SendCanidateRequest](v)},
		{Name: proto.EventSendAnswer, Broadcast: proto.EventSendAnswerMessage, parse: schema[proto.SendAnswerRequest](v)},
	}

	t := &Table{commands: make(map[string]*Command, len(rows))}
	for _, c := range rows {
		t.commands[c.Name] = c
	}
	return t
}

// Lookup returns the command registered for an inbound event name.
func (t *Table) Lookup(name string) (*Command, bool) {
	c, ok := t.commands[name]
	return c, ok
}

// Names returns the registered inbound event names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.commands))
	for name := range t.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
