// Package asm8080 implements the two-pass 8080 assembler (spec §4.5): a
// lexer/parser for assembly text, an opcode table loaded from JSON, an
// expression evaluator, and the pass1/pass2 driver that emits an
// objfile.Module.
//
// Grounded on _examples/original_source/asm80.py's Opcode/Mode/
// build_opcodes/Assembler, restructured in the style of the teacher's
// gmofishsauce-wut4/lang/yasm/assembler.go two-pass assembler.
package asm8080

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Mode is an opcode's operand-encoding mode, per spec §4.5.
type Mode string

const (
	ModeINL0    Mode = "INL0"    // operand packed into bits 0-2 of the opcode byte
	ModeINL3    Mode = "INL3"    // operand packed into bits 3-5 of the opcode byte
	ModeIMMBYTE Mode = "IMMBYTE" // one literal/relocatable byte follows
	ModeIMMWORD Mode = "IMMWORD" // two literal/relocatable bytes follow, little-endian
)

// Opcode is one mnemonic's encoding rule: a base opcode byte plus zero or
// more argument modes, applied left to right against the operand list.
type Opcode struct {
	Name string
	Code uint8
	Args []Mode
}

// LoadOpcodes parses the opcode table JSON described in spec §6: a list
// of lists `[mnemonic, base_opcode_octal_string_or_int, arg_mode...]`.
func LoadOpcodes(data []byte) (map[string]*Opcode, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("asm8080: decoding opcode table: %w", err)
	}
	out := map[string]*Opcode{}
	for _, elemRaw := range raw {
		var elem []json.RawMessage
		if err := json.Unmarshal(elemRaw, &elem); err != nil {
			return nil, fmt.Errorf("asm8080: decoding opcode entry: %w", err)
		}
		if len(elem) < 2 {
			return nil, fmt.Errorf("asm8080: opcode entry too short")
		}
		var name string
		if err := json.Unmarshal(elem[0], &name); err != nil {
			return nil, fmt.Errorf("asm8080: opcode name must be a string: %w", err)
		}
		code, err := decodeOpcodeValue(elem[1])
		if err != nil {
			return nil, err
		}
		args := make([]Mode, 0, len(elem)-2)
		for _, a := range elem[2:] {
			var s string
			if err := json.Unmarshal(a, &s); err != nil {
				return nil, fmt.Errorf("asm8080: arg mode must be a string: %w", err)
			}
			args = append(args, Mode(s))
		}
		out[name] = &Opcode{Name: name, Code: uint8(code), Args: args}
	}
	return out, nil
}

// decodeOpcodeValue accepts either a JSON number or an octal string (the
// table stores base opcodes in octal, matching the original 8080
// reference manual's convention preserved by spec §6).
func decodeOpcodeValue(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("asm8080: opcode value must be number or string: %w", err)
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("asm8080: bad octal opcode %q: %w", s, err)
	}
	return v, nil
}

// RegisterCodes maps the predefined 8080 register-pair/register-name
// operands to their 3-bit encodings, per spec §4.5: "m and sp/psw share
// code 6".
var RegisterCodes = map[string]uint8{
	"b": 0, "c": 1, "d": 2, "e": 3, "h": 4, "l": 5,
	"m": 6, "a": 7, "sp": 6, "psw": 6,
}
