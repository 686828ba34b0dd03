package tlsengine

import (
	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
	"github.com/zhangjinde/go-fdo-quic/internal/wire"
)

// Transport parameter codepoints recognized by this implementation (§6).
const (
	paramOriginalDestinationConnectionID = 0x00
	paramMaxIdleTimeout                  = 0x01
	paramMaxUDPPayloadSize               = 0x03
	paramInitialMaxData                  = 0x04
	paramInitialMaxStreamDataBidiLocal   = 0x05
	paramInitialMaxStreamDataBidiRemote  = 0x06
	paramInitialMaxStreamDataUni         = 0x07
	paramInitialMaxStreamsBidi           = 0x08
	paramInitialMaxStreamsUni            = 0x09
	paramInitialSourceConnectionID       = 0x0f
	paramMaxDatagramFrameSize            = 0x20
)

// TransportParameters is the quic_transport_parameters extension body
// (TLS extension codepoint 0x39), a set of varint-tagged TLV parameters.
type TransportParameters struct {
	OriginalDestinationConnectionID []byte
	HasOriginalDestinationCID       bool
	MaxIdleTimeout                  uint64
	MaxUDPPayloadSize                uint64
	InitialMaxData                   uint64
	InitialMaxStreamDataBidiLocal     uint64
	InitialMaxStreamDataBidiRemote    uint64
	InitialMaxStreamDataUni           uint64
	InitialMaxStreamsBidi             uint64
	InitialMaxStreamsUni              uint64
	InitialSourceConnectionID         []byte
	HasInitialSourceCID               bool
	MaxDatagramFrameSize              uint64
}

// ParseTransportParameters decodes the TLV body of the
// quic_transport_parameters extension. Unknown parameters are ignored;
// a duplicate recognized parameter is a protocol violation (§6).
func ParseTransportParameters(data []byte) (TransportParameters, error) {
	var tp TransportParameters
	seen := make(map[uint64]bool)
	r := wire.NewReader(data)
	for r.Remaining() > 0 {
		id, err := r.ReadVarint()
		if err != nil {
			return tp, protoerr.Wrap(protoerr.Truncated, "tlsengine.ParseTransportParameters: id", err)
		}
		length, err := r.ReadVarint()
		if err != nil {
			return tp, protoerr.Wrap(protoerr.Truncated, "tlsengine.ParseTransportParameters: length", err)
		}
		val, err := r.ReadBytes(int(length))
		if err != nil {
			return tp, protoerr.Wrap(protoerr.Truncated, "tlsengine.ParseTransportParameters: value", err)
		}
		if seen[id] {
			return tp, protoerr.New(protoerr.ProtocolViolation, "tlsengine.ParseTransportParameters: duplicate parameter")
		}
		seen[id] = true

		switch id {
		case paramOriginalDestinationConnectionID:
			tp.OriginalDestinationConnectionID = val
			tp.HasOriginalDestinationCID = true
		case paramMaxIdleTimeout:
			tp.MaxIdleTimeout = mustVarint(val)
		case paramMaxUDPPayloadSize:
			tp.MaxUDPPayloadSize = mustVarint(val)
		case paramInitialMaxData:
			tp.InitialMaxData = mustVarint(val)
		case paramInitialMaxStreamDataBidiLocal:
			tp.InitialMaxStreamDataBidiLocal = mustVarint(val)
		case paramInitialMaxStreamDataBidiRemote:
			tp.InitialMaxStreamDataBidiRemote = mustVarint(val)
		case paramInitialMaxStreamDataUni:
			tp.InitialMaxStreamDataUni = mustVarint(val)
		case paramInitialMaxStreamsBidi:
			tp.InitialMaxStreamsBidi = mustVarint(val)
		case paramInitialMaxStreamsUni:
			tp.InitialMaxStreamsUni = mustVarint(val)
		case paramInitialSourceConnectionID:
			tp.InitialSourceConnectionID = val
			tp.HasInitialSourceCID = true
		case paramMaxDatagramFrameSize:
			tp.MaxDatagramFrameSize = mustVarint(val)
		default:
			// unknown, ignored per §6
		}
	}
	return tp, nil
}

func mustVarint(b []byte) uint64 {
	v, _, err := wire.NewReader(b).ReadVarint()
	if err != nil {
		return 0
	}
	return v
}

// Build encodes tp as a quic_transport_parameters extension body.
func (tp TransportParameters) Build() []byte {
	w := wire.NewWriter()
	writeParam := func(id uint64, val []byte) {
		w.WriteVarint(id)
		w.WriteVarintBytes(val)
	}
	writeVarintParam := func(id, v uint64) {
		inner := wire.NewWriter()
		inner.WriteVarint(v)
		writeParam(id, inner.Bytes())
	}

	if tp.HasOriginalDestinationCID {
		writeParam(paramOriginalDestinationConnectionID, tp.OriginalDestinationConnectionID)
	}
	writeVarintParam(paramMaxIdleTimeout, tp.MaxIdleTimeout)
	writeVarintParam(paramMaxUDPPayloadSize, tp.MaxUDPPayloadSize)
	writeVarintParam(paramInitialMaxData, tp.InitialMaxData)
	writeVarintParam(paramInitialMaxStreamDataBidiLocal, tp.InitialMaxStreamDataBidiLocal)
	writeVarintParam(paramInitialMaxStreamDataBidiRemote, tp.InitialMaxStreamDataBidiRemote)
	writeVarintParam(paramInitialMaxStreamDataUni, tp.InitialMaxStreamDataUni)
	writeVarintParam(paramInitialMaxStreamsBidi, tp.InitialMaxStreamsBidi)
	writeVarintParam(paramInitialMaxStreamsUni, tp.InitialMaxStreamsUni)
	if tp.HasInitialSourceCID {
		writeParam(paramInitialSourceConnectionID, tp.InitialSourceConnectionID)
	}
	if tp.MaxDatagramFrameSize != 0 {
		writeVarintParam(paramMaxDatagramFrameSize, tp.MaxDatagramFrameSize)
	}
	return w.Bytes()
}

// TransportParametersExtensionType is the quic_transport_parameters TLS
// extension codepoint (RFC 9001 §8.2).
const TransportParametersExtensionType = 0x39
