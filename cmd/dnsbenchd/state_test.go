package main

import "testing"

func TestMainState(t *testing.T) {
	mainState(initial)
	if !isMain(initial) {
		t.Error("Expected initial state")
	}
	mainState(started)
	if !isMain(started) {
		t.Error("Expected started state")
	}
	if isMain(initial) {
		t.Error("Should no longer be in initial state")
	}
	mainState(stopped)
	if !isMain(stopped) {
		t.Error("Expected stopped state")
	}
}
