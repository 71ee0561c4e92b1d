package bartleby

import (
	"errors"
	"os"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/blacktop/bartleby/pkg/obj"
)

// fakeObject satisfies obj.Object for state-machine and merge tests that
// never reach the emitter.
type fakeObject struct {
	triple obj.Triple
	syms   []obj.Symbol
}

func (f *fakeObject) Triple() obj.Triple    { return f.triple }
func (f *fakeObject) Symbols() []obj.Symbol { return f.syms }
func (f *fakeObject) Bytes() []byte         { return nil }

var (
	elfTriple = obj.Triple{Arch: obj.ArchX86_64, Format: obj.FormatELF}
	armTriple = obj.Triple{Arch: obj.ArchAArch64, Format: obj.FormatMachO}
)

func TestSymbolMergeFixtures(t *testing.T) {
	var fixture struct {
		Cases []struct {
			Name        string `yaml:"name"`
			Occurrences []struct {
				Global    bool   `yaml:"global"`
				Weak      bool   `yaml:"weak"`
				Undefined bool   `yaml:"undefined"`
				Type      string `yaml:"type"`
			} `yaml:"occurrences"`
			WantGlobal  bool `yaml:"global"`
			WantDefined bool `yaml:"defined"`
			WantAbsent  bool `yaml:"absent"`
		} `yaml:"cases"`
	}

	data, err := os.ReadFile("testdata/symbol_merge.yaml")
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
	if len(fixture.Cases) == 0 {
		t.Fatal("fixture has no cases")
	}

	types := map[string]obj.SymType{
		"":        obj.TypeFunc,
		"func":    obj.TypeFunc,
		"data":    obj.TypeData,
		"file":    obj.TypeFile,
		"debug":   obj.TypeDebug,
		"other":   obj.TypeOther,
		"unknown": obj.TypeUnknown,
	}

	for _, tc := range fixture.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			h := New()
			for _, occ := range tc.Occurrences {
				var flags obj.Flag
				if occ.Global {
					flags |= obj.FlagGlobal
				}
				if occ.Weak {
					flags |= obj.FlagWeak
				}
				if occ.Undefined {
					flags |= obj.FlagUndefined
				}
				o := &fakeObject{triple: elfTriple, syms: []obj.Symbol{
					{Name: "sym", Flags: flags, Type: types[occ.Type]},
				}}
				if err := h.addObject(o, "", 0); err != nil {
					t.Fatalf("addObject() error = %v", err)
				}
			}

			sym, ok := h.Symbols()["sym"]
			if tc.WantAbsent {
				if ok {
					t.Fatal("symbol should have been skipped entirely")
				}
				return
			}
			if !ok {
				t.Fatal("symbol not found")
			}
			if sym.Global() != tc.WantGlobal {
				t.Errorf("Global() = %v, want %v", sym.Global(), tc.WantGlobal)
			}
			if sym.Defined() != tc.WantDefined {
				t.Errorf("Defined() = %v, want %v", sym.Defined(), tc.WantDefined)
			}
		})
	}
}

func TestPrefixGlobalAndDefinedSymbols(t *testing.T) {
	h := New()
	o := &fakeObject{triple: elfTriple, syms: []obj.Symbol{
		{Name: "defined_local_symbol", Type: obj.TypeFunc},
		{Name: "defined_global_symbol", Flags: obj.FlagGlobal, Type: obj.TypeFunc},
		{Name: "undefined_symbol", Flags: obj.FlagGlobal | obj.FlagUndefined, Type: obj.TypeUnknown},
		{Name: "weak_symbol", Flags: obj.FlagWeak | obj.FlagGlobal | obj.FlagUndefined, Type: obj.TypeFunc},
	}}
	if err := h.addObject(o, "", 0); err != nil {
		t.Fatalf("addObject() error = %v", err)
	}

	if n := h.PrefixGlobalAndDefinedSymbols("prefix_"); n != 1 {
		t.Errorf("PrefixGlobalAndDefinedSymbols() = %d, want 1", n)
	}
	sym := h.Symbols()["defined_global_symbol"]
	if name, ok := sym.OverwriteName(); !ok || name != "prefix_defined_global_symbol" {
		t.Errorf("OverwriteName() = %q, %v", name, ok)
	}
	if _, ok := h.Symbols()["undefined_symbol"].OverwriteName(); ok {
		t.Error("undefined symbol should not be renamed")
	}

	// A second object defining undefined_symbol makes it eligible too.
	o2 := &fakeObject{triple: elfTriple, syms: []obj.Symbol{
		{Name: "undefined_symbol", Flags: obj.FlagGlobal, Type: obj.TypeFunc},
	}}
	if err := h.addObject(o2, "", 0); err != nil {
		t.Fatalf("addObject() error = %v", err)
	}
	if n := h.PrefixGlobalAndDefinedSymbols("prefix_"); n != 2 {
		t.Errorf("PrefixGlobalAndDefinedSymbols() = %d, want 2", n)
	}
}

func TestPrefixMachORules(t *testing.T) {
	tests := []struct {
		name   string
		sym    string
		prefix string
		want   string
	}{
		{"underscored", "_foo", "P_", "_P_foo"},
		// The leading byte is stripped unconditionally, even without an
		// underscore. Pinned on purpose.
		{"underscore-less", "x", "P_", "_P_"},
		{"empty prefix", "_foo", "", "_foo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			o := &fakeObject{triple: armTriple, syms: []obj.Symbol{
				{Name: tt.sym, Flags: obj.FlagGlobal, Type: obj.TypeFunc},
			}}
			if err := h.addObject(o, "", 0); err != nil {
				t.Fatalf("addObject() error = %v", err)
			}
			if n := h.PrefixGlobalAndDefinedSymbols(tt.prefix); n != 1 {
				t.Fatalf("PrefixGlobalAndDefinedSymbols() = %d, want 1", n)
			}
			if name, _ := h.Symbols()[tt.sym].OverwriteName(); name != tt.want {
				t.Errorf("OverwriteName() = %q, want %q", name, tt.want)
			}
		})
	}
}

func TestPrefixLastCallerWins(t *testing.T) {
	h := New()
	o := &fakeObject{triple: elfTriple, syms: []obj.Symbol{
		{Name: "sym", Flags: obj.FlagGlobal, Type: obj.TypeFunc},
	}}
	if err := h.addObject(o, "", 0); err != nil {
		t.Fatalf("addObject() error = %v", err)
	}
	h.PrefixGlobalAndDefinedSymbols("a_")
	h.PrefixGlobalAndDefinedSymbols("b_")
	if name, _ := h.Symbols()["sym"].OverwriteName(); name != "b_sym" {
		t.Errorf("OverwriteName() = %q, want %q", name, "b_sym")
	}
}

func TestFormatStateMachine(t *testing.T) {
	t.Run("object then mismatched object", func(t *testing.T) {
		h := New()
		if err := h.addObject(&fakeObject{triple: armTriple}, "", 0); err != nil {
			t.Fatalf("addObject() error = %v", err)
		}
		err := h.addObject(&fakeObject{triple: elfTriple}, "", 0)
		var mismatch *FormatMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("error = %v, want FormatMismatchError", err)
		}
		if mismatch.Expected != FormatOf(armTriple) || mismatch.Found != FormatOf(elfTriple) {
			t.Errorf("mismatch = %v", mismatch)
		}
	})

	t.Run("same format accumulates", func(t *testing.T) {
		h := New()
		for i := 0; i < 3; i++ {
			if err := h.addObject(&fakeObject{triple: elfTriple}, "", 0); err != nil {
				t.Fatalf("addObject() error = %v", err)
			}
		}
		if len(h.objects) != 3 {
			t.Errorf("objects = %d, want 3", len(h.objects))
		}
		if h.objects[2].name != "3.o" {
			t.Errorf("default name = %q, want 3.o", h.objects[2].name)
		}
	})

	t.Run("subarch distinguishes formats", func(t *testing.T) {
		h := New()
		if err := h.addObject(&fakeObject{triple: armTriple}, "", 0); err != nil {
			t.Fatalf("addObject() error = %v", err)
		}
		arm64e := armTriple
		arm64e.SubArch = obj.SubArchArm64E
		err := h.addObject(&fakeObject{triple: arm64e}, "", 0)
		var mismatch *FormatMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("error = %v, want FormatMismatchError", err)
		}
	})
}

func TestObjectFormatPack(t *testing.T) {
	f := FormatOf(obj.Triple{Arch: obj.ArchAArch64, SubArch: obj.SubArchArm64E, Format: obj.FormatMachO})
	want := uint64(obj.ArchAArch64) | uint64(obj.SubArchArm64E)<<16 | uint64(obj.FormatMachO)<<32
	if f.Pack() != want {
		t.Errorf("Pack() = %#x, want %#x", f.Pack(), want)
	}
	if !f.Matches(f.Triple()) {
		t.Error("Matches() should hold for the format's own triple")
	}
	if f.Matches(elfTriple) {
		t.Error("Matches() should reject a different triple")
	}
}

func TestSkippedSymbolTypes(t *testing.T) {
	h := New()
	o := &fakeObject{triple: elfTriple, syms: []obj.Symbol{
		{Name: "src.c", Flags: obj.FlagGlobal, Type: obj.TypeFile},
		{Name: ".debug_info", Flags: obj.FlagGlobal, Type: obj.TypeDebug},
		{Name: "misc", Flags: obj.FlagGlobal, Type: obj.TypeOther},
		{Name: "broken", Flags: obj.FlagGlobal, Type: obj.TypeFunc, Err: true},
		{Name: "kept", Flags: obj.FlagGlobal, Type: obj.TypeUnknown},
	}}
	if err := h.addObject(o, "", 0); err != nil {
		t.Fatalf("addObject() error = %v", err)
	}
	if len(h.Symbols()) != 1 {
		t.Errorf("symbols = %d, want 1", len(h.Symbols()))
	}
	if _, ok := h.Symbols()["kept"]; !ok {
		t.Error("unknown-typed symbol should be kept")
	}
}
