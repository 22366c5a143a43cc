// File: datafeed/packet.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed data-feed packets flowing from drivers to subscribers.

// Package datafeed defines the packets an acquisition device emits, the
// deep-copy/release codec for them, and helpers for consuming a feed.
package datafeed

import (
	"fmt"
	"time"

	"github.com/momentics/sigcore/device"
)

// PacketType tags the payload variant of a Packet.
type PacketType uint16

const (
	// TypeHeader opens a feed; payload *Header.
	TypeHeader PacketType = iota + 1
	// TypeEnd closes a feed; no payload.
	TypeEnd
	// TypeMeta carries configuration changes; payload *Meta.
	TypeMeta
	// TypeTrigger marks the trigger point; no payload.
	TypeTrigger
	// TypeLogic carries logic samples; payload *Logic.
	TypeLogic
	// TypeAnalog carries analog samples; payload *Analog.
	TypeAnalog
	// TypeFrameBegin opens a capture frame; no payload.
	TypeFrameBegin
	// TypeFrameEnd closes a capture frame; no payload.
	TypeFrameEnd
	// TypeAnalog2 carries analog samples with explicit encoding
	// metadata; payload *Analog2.
	TypeAnalog2
)

// String returns the tag name used in log output.
func (t PacketType) String() string {
	switch t {
	case TypeHeader:
		return "HEADER"
	case TypeEnd:
		return "END"
	case TypeMeta:
		return "META"
	case TypeTrigger:
		return "TRIGGER"
	case TypeLogic:
		return "LOGIC"
	case TypeAnalog:
		return "ANALOG"
	case TypeFrameBegin:
		return "FRAME_BEGIN"
	case TypeFrameEnd:
		return "FRAME_END"
	case TypeAnalog2:
		return "ANALOG2"
	}
	return fmt.Sprintf("PacketType(%d)", uint16(t))
}

// Packet is one tagged unit on the data-feed bus. Tags without payloads
// carry a nil Payload.
type Packet struct {
	Type    PacketType
	Payload any
}

// Header is the payload of a TypeHeader packet.
type Header struct {
	// FeedVersion is the feed format version.
	FeedVersion int

	// StartTime is the wall-clock start of the acquisition; informational
	// only, never used for scheduling.
	StartTime time.Time
}

// MetaItem is one configuration entry in a Meta payload. The value is
// shared immutable data; copies of the packet share it by reference
// count.
type MetaItem struct {
	Key   uint32
	Value *Variant
}

// Meta is the payload of a TypeMeta packet.
type Meta struct {
	Config []MetaItem
}

// Logic is the payload of a TypeLogic packet.
type Logic struct {
	// Length is the number of sample units in Data.
	Length uint64

	// UnitSize is the byte width of one sample unit.
	UnitSize int

	// Data holds Length * UnitSize bytes.
	Data []byte
}

// Analog is the payload of a TypeAnalog packet.
type Analog struct {
	// Channels lists the channels the samples interleave across, shared
	// by reference with the device.
	Channels []*device.Channel

	// NumSamples is the number of float32 samples in Data.
	NumSamples int

	// MQ, Unit and MQFlags describe the measured quantity.
	MQ      uint32
	Unit    uint32
	MQFlags uint64

	// Data holds NumSamples samples.
	Data []float32
}

// AnalogEncoding describes the sample representation of an Analog2
// payload.
type AnalogEncoding struct {
	UnitSize int
	IsFloat  bool
	IsSigned bool
	Digits   int
}

// AnalogMeaning describes what Analog2 samples measure.
type AnalogMeaning struct {
	MQ       uint32
	Unit     uint32
	MQFlags  uint64
	Channels []*device.Channel
}

// Analog2 is the payload of a TypeAnalog2 packet: analog samples with
// explicit encoding and meaning blocks.
type Analog2 struct {
	Encoding *AnalogEncoding
	Meaning  *AnalogMeaning

	// NumSamples is the number of samples per channel.
	NumSamples int

	// Data holds the samples.
	Data []float32
}
