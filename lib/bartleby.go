// C API for bartleby, built as a c-shared or c-archive library:
//
//	go build -buildmode=c-shared -o libbartleby.so ./lib
//
// Handles cross the ABI as opaque tokens (cgo forbids passing Go pointers
// to C), and every error kind maps to EINVAL; an allocation failure in
// saq_bartleby_build_archive maps to ENOMEM.
package main

/*
#include <errno.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/blacktop/bartleby/pkg/bartleby"
)

var (
	mu      sync.Mutex
	handles = make(map[C.uintptr_t]*bartleby.Handle)
	nextID  C.uintptr_t = 1
)

func lookup(bh C.uintptr_t) *bartleby.Handle {
	mu.Lock()
	defer mu.Unlock()
	return handles[bh]
}

//export saq_bartleby_new
func saq_bartleby_new() C.uintptr_t {
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handles[id] = bartleby.New()
	return id
}

//export saq_bartleby_free
func saq_bartleby_free(bh C.uintptr_t) {
	mu.Lock()
	defer mu.Unlock()
	delete(handles, bh)
}

//export saq_bartleby_set_prefix
func saq_bartleby_set_prefix(bh C.uintptr_t, prefix *C.char) C.int {
	h := lookup(bh)
	if h == nil || prefix == nil {
		return C.EINVAL
	}
	h.PrefixGlobalAndDefinedSymbols(C.GoString(prefix))
	return 0
}

//export saq_bartleby_add_binary
func saq_bartleby_add_binary(bh C.uintptr_t, s unsafe.Pointer, n C.size_t) C.int {
	h := lookup(bh)
	if h == nil || s == nil || n == 0 {
		return C.EINVAL
	}
	// The buffer is copied; the caller keeps ownership of s.
	data := C.GoBytes(s, C.int(n))
	if err := h.Add(data); err != nil {
		return C.EINVAL
	}
	return 0
}

//export saq_bartleby_build_archive
func saq_bartleby_build_archive(bh C.uintptr_t, s *unsafe.Pointer, n *C.size_t) C.int {
	mu.Lock()
	h := handles[bh]
	// The handle is consumed whether or not the build succeeds.
	delete(handles, bh)
	mu.Unlock()

	if h == nil || s == nil || n == nil {
		return C.EINVAL
	}
	*s = nil
	*n = 0

	data, err := bartleby.BuildBytes(h)
	if err != nil {
		return C.EINVAL
	}

	out := C.malloc(C.size_t(len(data)))
	if out == nil {
		return C.ENOMEM
	}
	C.memcpy(out, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	*s = out
	*n = C.size_t(len(data))
	return 0
}

func main() {}
