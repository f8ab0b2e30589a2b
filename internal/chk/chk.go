// Package chk gives call sites a one-line way to log and test an error,
// instead of the usual `if err != nil { log...; return err }` stutter. The
// convention used throughout novarelay is:
//
//	if err = thing(); chk.E(err) {
//	        return err
//	}
//
// chk.E/T/W/I log at the matching level (error/trace/warn/info) with the
// call site's error and return true when err is non-nil, false otherwise,
// so it composes directly into an if-statement.
package chk

import "novarelay.dev/internal/log"

// E logs err at error level and reports whether it was non-nil.
func E(err error) bool {
	if err == nil {
		return false
	}
	log.E.F("%v", err)
	return true
}

// W logs err at warn level and reports whether it was non-nil.
func W(err error) bool {
	if err == nil {
		return false
	}
	log.W.F("%v", err)
	return true
}

// I logs err at info level and reports whether it was non-nil.
func I(err error) bool {
	if err == nil {
		return false
	}
	log.I.F("%v", err)
	return true
}

// T logs err at trace level and reports whether it was non-nil.
func T(err error) bool {
	if err == nil {
		return false
	}
	log.T.F("%v", err)
	return true
}
