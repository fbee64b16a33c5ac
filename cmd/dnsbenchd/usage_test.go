package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

type testUsageCase struct {
	expectToRun bool     // waitForMainExecute should not return an error if this is true
	args        []string // ARGV - not counting command
	stdout      []string // Expected stdout strings
	stderr      string   // Expected stderr string
}

var testUsageCases = []testUsageCase{
	{false, []string{"-version"}, []string{"dnsbenchd", "Version:"}, ""},
	{false, []string{"-h"}, []string{"NAME", "SYNOPSIS", "OPTIONS", "Version: v"}, ""},
	{false, []string{"-badopt"}, []string{}, "flag provided but not defined"},
	{false, []string{"Command", "line", "goop"}, []string{}, "Unexpected parameters"},
}

func TestUsage(t *testing.T) {
	for tx, tc := range testUsageCases {
		t.Run(fmt.Sprintf("%d", tx), func(t *testing.T) {
			args := append([]string{"dnsbenchd"}, tc.args...)
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			mainInit(out, errOut)
			done := make(chan error)
			go func() {
				done <- waitForMainExecute(t, time.Millisecond*200)
			}()
			ec := mainExecute(args)
			e := <-done
			outStr := out.String()
			errStr := errOut.String()

			if e != nil && tc.expectToRun {
				t.Fatal("Expected to run, but", e, errStr, outStr)
			}
			if ec == 0 && len(tc.stderr) > 0 {
				t.Error("Expected error exit from Execute() with stderr", tc.stderr)
			}
			if !strings.Contains(errStr, tc.stderr) {
				t.Error("Stderr expected:", tc.stderr, "Got:", errStr)
			}
			for _, o := range tc.stdout {
				if !strings.Contains(outStr, o) {
					t.Error("Stdout expected:", o, "Got:", outStr)
				}
			}
		})
	}
}

func TestNextInterval(t *testing.T) {
	tt := []struct {
		now      time.Time
		interval time.Duration
		nextIn   time.Duration
	}{
		{time.Date(2019, 5, 7, 1, 1, 1, 0, time.UTC), time.Minute, time.Second * 59},
		{time.Date(2019, 5, 7, 1, 13, 58, 0, time.UTC), time.Minute * 15, time.Minute + time.Second*2},
		{time.Date(2019, 5, 7, 1, 1, 1, 0, time.UTC), time.Hour, time.Minute*58 + time.Second*59},
	}

	for tx, tc := range tt {
		t.Run(fmt.Sprintf("%d", tx), func(t *testing.T) {
			nextIn := nextInterval(tc.now, tc.interval)
			if nextIn != tc.nextIn {
				t.Error("nextIn NE:now", tc.now, "Int", tc.interval, "Want", tc.nextIn, "Got", nextIn)
			}
		})
	}
}
