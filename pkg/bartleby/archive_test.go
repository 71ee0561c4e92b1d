package bartleby

import (
	"bytes"
	"errors"
	"testing"

	"github.com/blacktop/bartleby/internal/testobj"
	"github.com/blacktop/bartleby/pkg/ar"
	"github.com/blacktop/bartleby/pkg/lipo"
	"github.com/blacktop/bartleby/pkg/obj"
)

func mustAdd(t *testing.T, h *Handle, data []byte) {
	t.Helper()
	if err := h.Add(data); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
}

func mustBuild(t *testing.T, h *Handle) []byte {
	t.Helper()
	data, err := BuildBytes(h)
	if err != nil {
		t.Fatalf("BuildBytes() error = %v", err)
	}
	return data
}

// makeFat wraps one arm64 and one x86_64 Mach-O object into a universal
// binary using the emitter's own fat writer.
func makeFat(t *testing.T, armSyms, amdSyms []testobj.Sym) []byte {
	t.Helper()
	data, err := lipo.CreateBytes([]lipo.Slice{
		{CPU: testobj.CPUArm64, SubCPU: 0, Data: testobj.MachO64(testobj.CPUArm64, armSyms)},
		{CPU: testobj.CPUX8664, SubCPU: 3, Data: testobj.MachO64(testobj.CPUX8664, amdSyms)},
	})
	if err != nil {
		t.Fatalf("lipo.CreateBytes() error = %v", err)
	}
	return data
}

func TestTwoObjectMergeELF(t *testing.T) {
	obj1 := testobj.ELF64([]testobj.Sym{
		{Name: "defined_local_symbol"},
		{Name: "defined_global_symbol", Global: true},
		{Name: "undefined_symbol", Global: true, Undefined: true},
		{Name: "weak_symbol", Weak: true, Undefined: true},
	})
	obj2 := testobj.ELF64([]testobj.Sym{
		{Name: "undefined_symbol", Global: true},
	})

	h := New()
	mustAdd(t, h, obj1)
	mustAdd(t, h, obj2)

	if n := h.PrefixGlobalAndDefinedSymbols("prefix_"); n != 2 {
		t.Fatalf("PrefixGlobalAndDefinedSymbols() = %d, want 2", n)
	}
	archive := mustBuild(t, h)

	// Reingest the archive into a fresh handle.
	h2 := New()
	mustAdd(t, h2, archive)

	symbols := h2.Symbols()
	checks := []struct {
		name    string
		global  bool
		defined bool
	}{
		{"defined_local_symbol", false, true},
		{"prefix_defined_global_symbol", true, true},
		{"prefix_undefined_symbol", true, true},
		{"weak_symbol", false, false},
	}
	for _, c := range checks {
		sym, ok := symbols[c.name]
		if !ok {
			t.Errorf("symbol %q missing after round-trip", c.name)
			continue
		}
		if sym.Global() != c.global || sym.Defined() != c.defined {
			t.Errorf("%s: global=%v defined=%v, want global=%v defined=%v",
				c.name, sym.Global(), sym.Defined(), c.global, c.defined)
		}
	}
	for _, gone := range []string{"defined_global_symbol", "undefined_symbol"} {
		if _, ok := symbols[gone]; ok {
			t.Errorf("old name %q survived the rename", gone)
		}
	}
}

func TestFormatMismatch(t *testing.T) {
	h := New()
	mustAdd(t, h, testobj.MachO64(testobj.CPUArm64, []testobj.Sym{{Name: "_a", Global: true}}))

	err := h.Add(testobj.ELF64([]testobj.Sym{{Name: "a", Global: true}}))
	var mismatch *FormatMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Add() error = %v, want FormatMismatchError", err)
	}
	if mismatch.Expected.Format != obj.FormatMachO || mismatch.Found.Format != obj.FormatELF {
		t.Errorf("mismatch = %v", mismatch)
	}
}

func TestUniversalMixedWithPlain(t *testing.T) {
	fat := makeFat(t,
		[]testobj.Sym{{Name: "_f", Global: true}},
		[]testobj.Sym{{Name: "_f", Global: true}})

	h := New()
	mustAdd(t, h, fat)

	err := h.Add(testobj.MachO64(testobj.CPUArm64, []testobj.Sym{{Name: "_g", Global: true}}))
	var fatErr *FatMachOError
	if !errors.As(err, &fatErr) {
		t.Fatalf("Add() error = %v, want FatMachOError", err)
	}

	// The converse as well: a committed single format rejects a fat input.
	h2 := New()
	mustAdd(t, h2, testobj.MachO64(testobj.CPUArm64, []testobj.Sym{{Name: "_g", Global: true}}))
	if err := h2.Add(fat); !errors.As(err, &fatErr) {
		t.Fatalf("Add(fat) error = %v, want FatMachOError", err)
	}
}

func TestEmptyPrefixIsByteIdentical(t *testing.T) {
	input := testobj.ELF64([]testobj.Sym{{Name: "sym", Global: true}})

	plain := New()
	mustAdd(t, plain, input)
	want := mustBuild(t, plain)

	prefixed := New()
	mustAdd(t, prefixed, input)
	if n := prefixed.PrefixGlobalAndDefinedSymbols(""); n != 1 {
		t.Fatalf("PrefixGlobalAndDefinedSymbols() = %d, want 1", n)
	}
	got := mustBuild(t, prefixed)

	if !bytes.Equal(got, want) {
		t.Error("empty prefix should emit a byte-identical archive")
	}
}

func TestBuildDeterministic(t *testing.T) {
	build := func() []byte {
		h := New()
		mustAdd(t, h, testobj.ELF64([]testobj.Sym{
			{Name: "one", Global: true},
			{Name: "two", Global: true},
			{Name: "three", Global: true, Undefined: true},
		}))
		mustAdd(t, h, testobj.ELF64([]testobj.Sym{{Name: "three", Global: true}}))
		h.PrefixGlobalAndDefinedSymbols("p_")
		return mustBuild(t, h)
	}
	if !bytes.Equal(build(), build()) {
		t.Error("identical inputs must produce byte-identical archives")
	}
}

func TestArchiveOfArchive(t *testing.T) {
	inner := New()
	mustAdd(t, inner, testobj.ELF64([]testobj.Sym{{Name: "x", Global: true}}))
	innerData := mustBuild(t, inner)

	// An archive whose only member is itself an archive.
	nested, err := ar.WriteBytes([]ar.Member{{Name: "inner.a", Data: innerData}}, ar.KindGNU)
	if err != nil {
		t.Fatalf("ar.WriteBytes() error = %v", err)
	}

	h := New()
	err = h.Add(nested)
	var unsupported *UnsupportedBinaryError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Add() error = %v, want UnsupportedBinaryError", err)
	}
}

func TestUniversalRoundTrip(t *testing.T) {
	fat := makeFat(t,
		[]testobj.Sym{
			{Name: "_shared", Global: true},
			{Name: "_arm_only", Global: true},
		},
		[]testobj.Sym{
			{Name: "_shared", Global: true},
		})

	h := New()
	mustAdd(t, h, fat)
	if n := h.PrefixGlobalAndDefinedSymbols("p_"); n != 2 {
		t.Fatalf("PrefixGlobalAndDefinedSymbols() = %d, want 2", n)
	}
	out := mustBuild(t, h)

	bin, err := obj.Parse(out)
	if err != nil {
		t.Fatalf("Parse(output) error = %v", err)
	}
	uni, ok := bin.(*obj.Universal)
	if !ok {
		t.Fatalf("output is %s, want a universal binary", obj.KindString(bin))
	}
	if len(uni.Slices) != 2 {
		t.Fatalf("output has %d slices, want 2", len(uni.Slices))
	}
	for _, sl := range uni.Slices {
		if sl.Kind != obj.SliceArchive {
			t.Errorf("%s slice should contain an archive", sl.Triple)
		}
	}

	// Reingesting the fat output must show the renamed names.
	h2 := New()
	mustAdd(t, h2, out)
	for _, want := range []string{"_p_shared", "_p_arm_only"} {
		if _, ok := h2.Symbols()[want]; !ok {
			t.Errorf("symbol %q missing from fat round-trip", want)
		}
	}
	if _, ok := h2.Symbols()["_shared"]; ok {
		t.Error("old name _shared survived the rename")
	}
}

func TestMachOArchiveBuild(t *testing.T) {
	h := New()
	mustAdd(t, h, testobj.MachO64(testobj.CPUArm64, []testobj.Sym{{Name: "_f", Global: true}}))
	h.PrefixGlobalAndDefinedSymbols("p_")
	out := mustBuild(t, h)

	h2 := New()
	mustAdd(t, h2, out)
	if _, ok := h2.Symbols()["_p_f"]; !ok {
		t.Errorf("symbol _p_f missing, have %v", symbolNames(h2))
	}
}

func TestHandleConsumedByBuild(t *testing.T) {
	h := New()
	mustAdd(t, h, testobj.ELF64([]testobj.Sym{{Name: "x", Global: true}}))
	mustBuild(t, h)

	if _, err := BuildBytes(h); err == nil {
		t.Error("second BuildBytes() should fail")
	}
	if err := h.Add(testobj.ELF64(nil)); err == nil {
		t.Error("Add() after build should fail")
	}
}

func TestBuildEmptyHandle(t *testing.T) {
	if _, err := BuildBytes(New()); err == nil {
		t.Error("BuildBytes() on an empty handle should fail")
	}
}

func symbolNames(h *Handle) []string {
	var names []string
	for name := range h.Symbols() {
		names = append(names, name)
	}
	return names
}
