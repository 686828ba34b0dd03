package tlsengine

import "github.com/zhangjinde/go-fdo-quic/internal/protoerr"

// ExtensionType is a TLS extension codepoint.
type ExtensionType uint16

const (
	ExtSupportedVersions ExtensionType = 0x2b
	ExtKeyShare          ExtensionType = 0x33
	ExtQUICTransportParams ExtensionType = TransportParametersExtensionType
)

// Extension is a generic, unparsed TLS extension; callers look up the
// ones they recognize by Type.
type Extension struct {
	Type ExtensionType
	Data []byte
}

// Context is the handshake message an extension is permitted to appear
// in (§4.6). requireExtension takes one but does not consult it: a
// mandatory extension is looked up the same way in every context.
type Context int

const (
	CtxClientHello Context = iota
	CtxServerHello
	CtxEncryptedExtensions
)

func parseExtensionList(l *lenBuf) ([]Extension, error) {
	raw, err := l.readVec16()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseExtensionList", err)
	}
	sub := newLenBuf(raw)
	var out []Extension
	for sub.remaining() > 0 {
		typ, err := sub.readUint16()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseExtensionList: type", err)
		}
		data, err := sub.readVec16()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseExtensionList: data", err)
		}
		out = append(out, Extension{Type: ExtensionType(typ), Data: data})
	}
	return out, nil
}

func buildExtensionList(exts []Extension) []byte {
	body := &lenWriter{}
	for _, e := range exts {
		body.writeUint16(uint16(e.Type))
		body.writeVec16(e.Data)
	}
	w := &lenWriter{}
	w.writeVec16(body.bytes())
	return w.bytes()
}

func findExtension(exts []Extension, t ExtensionType) (Extension, bool) {
	for _, e := range exts {
		if e.Type == t {
			return e, true
		}
	}
	return Extension{}, false
}

// requireExtension looks up a mandatory extension, returning a fatal
// MissingExtension error if absent (§4.6).
func requireExtension(exts []Extension, t ExtensionType, ctx Context) (Extension, error) {
	e, ok := findExtension(exts, t)
	if !ok {
		return Extension{}, protoerr.New(protoerr.MissingExtension, "tlsengine.requireExtension")
	}
	return e, nil
}

// KeyShareEntry is one (group, key_exchange) pair as carried in the
// key_share extension.
type KeyShareEntry struct {
	Group       uint16
	KeyExchange []byte
}

// NamedGroupX25519 is the only named group this implementation offers or
// accepts (RFC 8446 §4.2.7); SECP256R1/SECP384R1 are recognized as valid
// codepoints elsewhere but not implemented here.
const NamedGroupX25519 = 0x001d

func buildKeyShareClientExtension(entries []KeyShareEntry) Extension {
	w := &lenWriter{}
	inner := &lenWriter{}
	for _, e := range entries {
		inner.writeUint16(e.Group)
		inner.writeVec16(e.KeyExchange)
	}
	w.writeVec16(inner.bytes())
	return Extension{Type: ExtKeyShare, Data: w.bytes()}
}

func parseKeyShareClientExtension(data []byte) ([]KeyShareEntry, error) {
	l := newLenBuf(data)
	raw, err := l.readVec16()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Malformed, "tlsengine.parseKeyShareClientExtension", err)
	}
	sub := newLenBuf(raw)
	var out []KeyShareEntry
	for sub.remaining() > 0 {
		group, err := sub.readUint16()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Malformed, "tlsengine.parseKeyShareClientExtension: group", err)
		}
		ke, err := sub.readVec16()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Malformed, "tlsengine.parseKeyShareClientExtension: key_exchange", err)
		}
		out = append(out, KeyShareEntry{Group: group, KeyExchange: ke})
	}
	return out, nil
}

func buildKeyShareServerExtension(e KeyShareEntry) Extension {
	w := &lenWriter{}
	w.writeUint16(e.Group)
	w.writeVec16(e.KeyExchange)
	return Extension{Type: ExtKeyShare, Data: w.bytes()}
}

func parseKeyShareServerExtension(data []byte) (KeyShareEntry, error) {
	l := newLenBuf(data)
	group, err := l.readUint16()
	if err != nil {
		return KeyShareEntry{}, protoerr.Wrap(protoerr.Malformed, "tlsengine.parseKeyShareServerExtension: group", err)
	}
	ke, err := l.readVec16()
	if err != nil {
		return KeyShareEntry{}, protoerr.Wrap(protoerr.Malformed, "tlsengine.parseKeyShareServerExtension: key_exchange", err)
	}
	return KeyShareEntry{Group: group, KeyExchange: ke}, nil
}
