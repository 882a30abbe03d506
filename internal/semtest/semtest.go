// Package semtest provides small test assertion helpers shared across the
// module's package-level _test.go files.
package semtest

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/nlparse/semparse/internal/xerrors"
)

func fatalf(t *testing.T, message string, params ...any) {
	if len(params) > 0 {
		message = fmt.Sprintf(message, params...)
	}
	_, thisFile, _, _ := runtime.Caller(0)
	file := thisFile
	line := 0
	for i := 2; file == thisFile; i++ {
		_, file, line, _ = runtime.Caller(i)
	}
	t.Fatalf("%s at %s:%d", message, file, line)
}

// Assert fails the test with message if cond is false.
func Assert(t *testing.T, cond bool, message string, params ...any) {
	if !cond {
		fatalf(t, message, params...)
	}
}

// Expect fails the test reporting expected/got if cond is false.
func Expect(t *testing.T, cond bool, expected, got any) {
	if !cond {
		fatalf(t, "expecting %v, got %v", expected, got)
	}
}

// ExpectBool fails the test if expected != got.
func ExpectBool(t *testing.T, expected, got bool) {
	Expect(t, expected == got, expected, got)
}

// ExpectInt fails the test if expected != got.
func ExpectInt(t *testing.T, expected, got int) {
	Expect(t, expected == got, expected, got)
}

// ExpectErrorCode fails the test unless e is a *semparse.Error with the
// expected code (looked up by walking e's Unwrap() chain).
func ExpectErrorCode(t *testing.T, expected int, e error) {
	for cur := e; cur != nil; {
		if se, ok := cur.(*xerrors.Error); ok {
			if se.Code == expected {
				return
			}
			break
		}
		u, ok := cur.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cur = u.Unwrap()
	}

	fatalf(t, "expecting error code %d, got %v", expected, e)
}
