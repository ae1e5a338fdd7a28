package anki

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers inside the protobuf config blobs of schema 18 collections.
const (
	notetypeKindField = 1 // Notetype.Config.kind
	templateQFmtField = 1 // CardTemplate.Config.q_format
	templateAFmtField = 2 // CardTemplate.Config.a_format
	notetypeKindCloze = 1
)

// notetypeIsCloze reads the kind enum from a notetype config blob.
func notetypeIsCloze(config []byte) bool {
	cloze := false
	walkFields(config, func(num protowire.Number, typ protowire.Type, value []byte, varint uint64) {
		if num == notetypeKindField && typ == protowire.VarintType {
			cloze = varint == notetypeKindCloze
		}
	})
	return cloze
}

// templateFormats reads the front and back template strings from a card
// template config blob.
func templateFormats(config []byte) (front, back string) {
	walkFields(config, func(num protowire.Number, typ protowire.Type, value []byte, _ uint64) {
		if typ != protowire.BytesType {
			return
		}
		switch num {
		case templateQFmtField:
			front = string(value)
		case templateAFmtField:
			back = string(value)
		}
	})
	return front, back
}

// walkFields visits the top-level fields of a protobuf message. Malformed
// input stops the walk silently.
func walkFields(b []byte, visit func(num protowire.Number, typ protowire.Type, value []byte, varint uint64)) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return
			}
			visit(num, typ, nil, v)
			b = b[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return
			}
			visit(num, typ, v, 0)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return
			}
			b = b[m:]
		}
	}
}
