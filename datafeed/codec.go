// File: datafeed/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Deep copy and release of data-feed packets.

package datafeed

import (
	"fmt"
	"log/slog"

	"github.com/momentics/sigcore/api"
	"github.com/momentics/sigcore/device"
)

func badPayload(t PacketType) error {
	return fmt.Errorf("datafeed: %v packet has mismatched payload: %w", t, api.ErrInvalidArgument)
}

// CopyPacket performs a deep copy of the packet appropriate to its tag.
//
// Tags without payloads copy the header only. Meta entries share their
// variant values, taking one reference each. Logic and analog sample
// buffers are cloned into pooled storage; call Release on the copy to
// return them.
func CopyPacket(p *Packet) (*Packet, error) {
	if p == nil {
		return nil, fmt.Errorf("datafeed: packet was nil: %w", api.ErrInvalidArgument)
	}

	out := &Packet{Type: p.Type}

	switch p.Type {
	case TypeTrigger, TypeEnd, TypeFrameBegin, TypeFrameEnd:
		// No payload.

	case TypeHeader:
		header, ok := p.Payload.(*Header)
		if !ok {
			return nil, badPayload(p.Type)
		}
		clone := *header
		out.Payload = &clone

	case TypeMeta:
		meta, ok := p.Payload.(*Meta)
		if !ok {
			return nil, badPayload(p.Type)
		}
		metaCopy := &Meta{Config: make([]MetaItem, len(meta.Config))}
		for i, item := range meta.Config {
			metaCopy.Config[i] = MetaItem{
				Key:   item.Key,
				Value: item.Value.Ref(),
			}
		}
		out.Payload = metaCopy

	case TypeLogic:
		logic, ok := p.Payload.(*Logic)
		if !ok {
			return nil, badPayload(p.Type)
		}
		n := int(logic.Length) * logic.UnitSize
		logicCopy := &Logic{
			Length:   logic.Length,
			UnitSize: logic.UnitSize,
			Data:     logicBuffers.get(n),
		}
		copy(logicCopy.Data, logic.Data[:n])
		out.Payload = logicCopy

	case TypeAnalog:
		analog, ok := p.Payload.(*Analog)
		if !ok {
			return nil, badPayload(p.Type)
		}
		analogCopy := &Analog{
			Channels:   append([]*device.Channel(nil), analog.Channels...),
			NumSamples: analog.NumSamples,
			MQ:         analog.MQ,
			Unit:       analog.Unit,
			MQFlags:    analog.MQFlags,
			Data:       analogBuffers.get(analog.NumSamples),
		}
		copy(analogCopy.Data, analog.Data[:analog.NumSamples])
		out.Payload = analogCopy

	case TypeAnalog2:
		analog, ok := p.Payload.(*Analog2)
		if !ok {
			return nil, badPayload(p.Type)
		}
		encoding := *analog.Encoding
		meaning := *analog.Meaning
		meaning.Channels = append([]*device.Channel(nil), analog.Meaning.Channels...)
		analogCopy := &Analog2{
			Encoding:   &encoding,
			Meaning:    &meaning,
			NumSamples: analog.NumSamples,
			Data:       analogBuffers.get(len(analog.Data)),
		}
		copy(analogCopy.Data, analog.Data)
		out.Payload = analogCopy

	default:
		slog.Error("datafeed: unknown packet type", "type", uint16(p.Type))
		return nil, fmt.Errorf("datafeed: unknown packet type %d: %w", uint16(p.Type), api.ErrFailed)
	}

	return out, nil
}

// Release returns the packet's owned buffers to their pools and drops the
// references its meta entries hold. Only packets produced by CopyPacket
// may be released; the input side of the bus stays owned by the caller.
func (p *Packet) Release() {
	switch payload := p.Payload.(type) {
	case nil:
		// Header-only tag, or already released.

	case *Header:
		// Nothing owned beyond the payload struct itself.

	case *Meta:
		for _, item := range payload.Config {
			item.Value.Unref()
		}
		payload.Config = nil

	case *Logic:
		logicBuffers.put(payload.Data)
		payload.Data = nil

	case *Analog:
		analogBuffers.put(payload.Data)
		payload.Data = nil
		payload.Channels = nil

	case *Analog2:
		analogBuffers.put(payload.Data)
		payload.Data = nil

	default:
		slog.Error("datafeed: release of unknown payload", "type", p.Type.String())
	}
	p.Payload = nil
}
