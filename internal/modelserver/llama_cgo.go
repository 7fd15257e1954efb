//go:build llama

package modelserver

// cgo link directives for the in-process llama runtime: rpath $ORIGIN so
// libllama.so is found next to the binary, and ./bin at link time.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
