// Package objfile implements the C6T object-module wire format (spec
// §4.7): a little-endian header, two segment streams of literal-data and
// relocation-reference records, a symbol table, and a terminating zero
// byte.
//
// Grounded on _examples/original_source/linker.py's Module/Symbol/
// Reference/SymFlag/RefFlag, adapted from Python's struct.pack/unpack
// calls into explicit encoding/binary use in the teacher's
// (gmofishsauce-wut4/lang/yasm) object-writer style.
package objfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const nameLen = 8

// SegFlag identifies which segment a symbol belongs to, per spec §4.7:
// "segment in bits 0-1 (0=text,1=data,2=bss)".
type SegFlag uint8

const (
	SegText SegFlag = 0
	SegData SegFlag = 1
	SegBSS  SegFlag = 2
)

// SymFlag is a symbol table entry's flag byte.
type SymFlag uint8

const (
	SegMask      SymFlag = 0x3
	FlagExtern   SymFlag = 4
	FlagExport   SymFlag = 8
	FlagCommon   SymFlag = 16
)

// Symbol is one symbol-table entry: name, value, and flags.
type Symbol struct {
	Name  string
	Value uint16
	Flags SymFlag
}

func (s Symbol) Seg() SegFlag    { return SegFlag(s.Flags & SegMask) }
func (s Symbol) Export() bool    { return s.Flags&FlagExport != 0 }
func (s Symbol) Common() bool    { return s.Flags&FlagCommon != 0 }
func (s Symbol) Extern() bool    { return s.Flags&FlagExtern != 0 }

// RefFlag is a relocation reference's flag byte, per spec §4.7: a
// reference record's length byte is the negated flag byte, so
// RefAlwaysSet must be set to guarantee that byte reads as negative.
type RefFlag uint8

const (
	RefByte      RefFlag = 1
	RefHi        RefFlag = 2
	RefSymbol    RefFlag = 4
	RefHiLo      RefFlag = 8
	RefAlwaysSet RefFlag = 16
)

// Reference is a relocation entry embedded in a segment stream: either a
// symbol-relative or PC-relative 16-bit (or byte-selected) value.
type Reference struct {
	Flags RefFlag
	Name  string // present only if Flags&RefSymbol != 0
	Con   int64
}

func (r Reference) IsSymbol() bool { return r.Flags&RefSymbol != 0 }

// Len reports the encoded byte width of the reference: 1 if RefByte is
// set, else 2.
func (r Reference) Len() int {
	if r.Flags&RefByte != 0 {
		return 1
	}
	return 2
}

// SegElem is one element of a segment stream: either literal bytes or a
// relocation Reference.
type SegElem struct {
	Bytes []byte
	Ref   *Reference
}

// Module is a single compiled/assembled object file: text and data
// segment streams, a bss length (bss carries no bytes, only size), and a
// symbol table.
type Module struct {
	Text   []SegElem
	Data   []SegElem
	BSSLen int
	Syms   map[string]*Symbol
}

// NewModule returns an empty Module.
func NewModule() *Module {
	return &Module{Syms: map[string]*Symbol{}}
}

func segLen(seg []SegElem) int {
	n := 0
	for _, e := range seg {
		if e.Ref != nil {
			n += e.Ref.Len()
		} else {
			n += len(e.Bytes)
		}
	}
	return n
}

func nameBytes(name string) [nameLen]byte {
	var out [nameLen]byte
	copy(out[:], name)
	return out
}

// Encode serialises m per spec §4.7.
func (m *Module) Encode() ([]byte, error) {
	var buf bytes.Buffer
	header := []uint16{
		uint16(segLen(m.Text)),
		uint16(segLen(m.Data)),
		uint16(m.BSSLen),
	}
	for _, h := range header {
		if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
			return nil, err
		}
	}
	for _, seg := range [][]SegElem{m.Text, m.Data} {
		if err := encodeSeg(&buf, seg); err != nil {
			return nil, err
		}
	}
	if err := encodeSyms(&buf, m.Syms); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeSeg(buf *bytes.Buffer, seg []SegElem) error {
	for _, e := range seg {
		if e.Ref != nil {
			flags := e.Ref.Flags | RefAlwaysSet
			if flags > 127 {
				return fmt.Errorf("objfile: reference flag byte overflow")
			}
			if err := buf.WriteByte(byte(-int8(flags))); err != nil {
				return err
			}
			if e.Ref.IsSymbol() {
				nb := nameBytes(e.Ref.Name)
				buf.Write(nb[:])
			}
			if err := binary.Write(buf, binary.LittleEndian, uint16(e.Ref.Con)); err != nil {
				return err
			}
			continue
		}
		data := e.Bytes
		for len(data) > 0 {
			chunk := data
			if len(chunk) > 127 {
				chunk = chunk[:127]
			}
			if err := buf.WriteByte(byte(len(chunk))); err != nil {
				return err
			}
			buf.Write(chunk)
			data = data[len(chunk):]
		}
	}
	return buf.WriteByte(0)
}

func encodeSyms(buf *bytes.Buffer, syms map[string]*Symbol) error {
	for _, s := range syms {
		nb := nameBytes(s.Name)
		buf.Write(nb[:])
		if err := binary.Write(buf, binary.LittleEndian, s.Value); err != nil {
			return err
		}
		if err := buf.WriteByte(byte(s.Flags)); err != nil {
			return err
		}
	}
	return buf.WriteByte(0)
}

// Decode parses a Module from its wire encoding, per spec §4.7.
func Decode(src []byte) (*Module, error) {
	if len(src) < 6 {
		return nil, fmt.Errorf("objfile: truncated header")
	}
	textLen := binary.LittleEndian.Uint16(src[0:2])
	dataLen := binary.LittleEndian.Uint16(src[2:4])
	bssLen := binary.LittleEndian.Uint16(src[4:6])
	i := 6

	text, i, err := decodeSeg(src, i)
	if err != nil {
		return nil, err
	}
	if segLen(text) != int(textLen) {
		return nil, fmt.Errorf("objfile: text segment length mismatch")
	}
	data, i, err := decodeSeg(src, i)
	if err != nil {
		return nil, err
	}
	if segLen(data) != int(dataLen) {
		return nil, fmt.Errorf("objfile: data segment length mismatch")
	}
	syms, _, err := decodeSyms(src, i)
	if err != nil {
		return nil, err
	}
	return &Module{Text: text, Data: data, BSSLen: int(bssLen), Syms: syms}, nil
}

func readName(src []byte, i int) (string, int, error) {
	if i+nameLen > len(src) {
		return "", i, fmt.Errorf("objfile: truncated name")
	}
	raw := src[i : i+nameLen]
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		end = nameLen
	}
	return string(raw[:end]), i + nameLen, nil
}

func decodeSeg(src []byte, i int) ([]SegElem, int, error) {
	var out []SegElem
	for {
		if i >= len(src) {
			return nil, i, fmt.Errorf("objfile: truncated segment")
		}
		count := int8(src[i])
		i++
		switch {
		case count > 0:
			n := int(count)
			if i+n > len(src) {
				return nil, i, fmt.Errorf("objfile: truncated literal run")
			}
			out = append(out, SegElem{Bytes: append([]byte(nil), src[i:i+n]...)})
			i += n
		case count < 0:
			flags := RefFlag(-count)
			ref := Reference{Flags: flags &^ RefAlwaysSet}
			var name string
			var err error
			if ref.Flags&RefSymbol != 0 {
				name, i, err = readName(src, i)
				if err != nil {
					return nil, i, err
				}
				ref.Name = name
			}
			if i+2 > len(src) {
				return nil, i, fmt.Errorf("objfile: truncated reference constant")
			}
			ref.Con = int64(binary.LittleEndian.Uint16(src[i : i+2]))
			i += 2
			out = append(out, SegElem{Ref: &ref})
		default:
			return out, i, nil
		}
	}
}

func decodeSyms(src []byte, i int) (map[string]*Symbol, int, error) {
	syms := map[string]*Symbol{}
	for {
		if i >= len(src) {
			return nil, i, fmt.Errorf("objfile: truncated symbol table")
		}
		if src[i] == 0 {
			return syms, i + 1, nil
		}
		name, ni, err := readName(src, i)
		if err != nil {
			return nil, i, err
		}
		i = ni
		if i+3 > len(src) {
			return nil, i, fmt.Errorf("objfile: truncated symbol entry")
		}
		value := binary.LittleEndian.Uint16(src[i : i+2])
		flags := SymFlag(src[i+2])
		i += 3
		if _, dup := syms[name]; dup {
			return nil, i, fmt.Errorf("objfile: redefined symbol %q", name)
		}
		syms[name] = &Symbol{Name: name, Value: value, Flags: flags}
	}
}

// Resolve computes the byte encoding of a reference given the PC-relative
// base offset (used when the reference carries no symbol) and the set of
// symbol tables to search (module-local then, at link time, the global
// table), per spec §4.6's "Relocation resolution".
func (r Reference) Resolve(baseOffset int64, symtabs ...map[string]*Symbol) ([]byte, error) {
	var data int64
	if r.IsSymbol() {
		var sym *Symbol
		for _, st := range symtabs {
			if s, ok := st[r.Name]; ok {
				sym = s
				break
			}
		}
		if sym == nil {
			return nil, fmt.Errorf("objfile: undefined symbol %q", r.Name)
		}
		if sym.Common() {
			return nil, fmt.Errorf("objfile: illegal reference to common symbol %q", r.Name)
		}
		data = int64(sym.Value) + r.Con
	} else {
		data = baseOffset + r.Con
	}
	word := uint16(data)
	lo := byte(word)
	hi := byte(word >> 8)

	if r.Flags&RefHiLo != 0 {
		selected := lo
		if r.Flags&RefHi != 0 {
			selected = hi
		}
		if r.Flags&RefByte != 0 {
			return []byte{selected}, nil
		}
		return []byte{selected, 0}, nil
	}
	if r.Flags&RefByte != 0 {
		return []byte{lo}, nil
	}
	return []byte{lo, hi}, nil
}
