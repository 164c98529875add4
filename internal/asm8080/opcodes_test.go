package asm8080

import (
	"testing"

	"github.com/popeyeotaku/pyc6t/internal/assets"
)

func TestLoadOpcodes(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantErr  bool
		check    func(t *testing.T, ops map[string]*Opcode)
	}{
		{
			name: "octal string opcode",
			data: `[["nop", "000"], ["hlt", "166"]]`,
			check: func(t *testing.T, ops map[string]*Opcode) {
				if ops["hlt"].Code != 0o166 {
					t.Errorf("hlt code = %#o, want 0166", ops["hlt"].Code)
				}
			},
		},
		{
			name: "numeric opcode",
			data: `[["nop", 0]]`,
			check: func(t *testing.T, ops map[string]*Opcode) {
				if ops["nop"].Code != 0 {
					t.Errorf("nop code = %d, want 0", ops["nop"].Code)
				}
			},
		},
		{
			name: "arg modes recorded in order",
			data: `[["mvi", "006", "INL3", "IMMBYTE"]]`,
			check: func(t *testing.T, ops map[string]*Opcode) {
				op := ops["mvi"]
				if len(op.Args) != 2 || op.Args[0] != ModeINL3 || op.Args[1] != ModeIMMBYTE {
					t.Errorf("mvi args = %v, want [INL3 IMMBYTE]", op.Args)
				}
			},
		},
		{
			name:    "bad octal string",
			data:    `[["bad", "999"]]`,
			wantErr: true,
		},
		{
			name:    "entry too short",
			data:    `[["bad"]]`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := LoadOpcodes([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, ops)
			}
		})
	}
}

func TestLoadOpcodesBuiltinTable(t *testing.T) {
	ops, err := LoadOpcodes(assets.Opcodes)
	if err != nil {
		t.Fatalf("loading builtin opcode table: %v", err)
	}
	for _, name := range []string{"mov", "mvi", "lxi", "jmp", "call", "ret", "dad", "push", "pop", "je", "jne"} {
		if _, ok := ops[name]; !ok {
			t.Errorf("builtin opcode table missing mnemonic %q", name)
		}
	}
	// je/jne are aliases for jz/jnz, which internal/backend's brz/bnz
	// lowering emits instead of jz/jnz directly.
	if ops["je"].Code != ops["jz"].Code {
		t.Errorf("je code = %#o, want same as jz %#o", ops["je"].Code, ops["jz"].Code)
	}
	if ops["jne"].Code != ops["jnz"].Code {
		t.Errorf("jne code = %#o, want same as jnz %#o", ops["jne"].Code, ops["jnz"].Code)
	}
}
