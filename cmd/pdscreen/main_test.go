package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdscreen/pdscreen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainArgsEnv = "PDSCREEN_TEST_MAIN_ARGS"

func TestRun_MissingImage(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "nope.png"), "s")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "image not found")
	assert.Contains(t, err.Error(), "nope.png")
}

func TestRun_UnknownDrawingType(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "nope.png"), "circle")
	assert.ErrorIs(t, err, pdscreen.ErrUnknownDrawingType)
}

// TestMainExitCode runs main in a child process and checks the exit status
// and the message printed to stderr.
func TestMainExitCode(t *testing.T) {
	if args := os.Getenv(mainArgsEnv); args != "" {
		os.Args = append([]string{"pdscreen"}, filepath.SplitList(args)...)
		main()
		return
	}

	missing := filepath.Join(t.TempDir(), "nope.png")
	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing image", args: []string{missing, "s"}, want: "Error: image not found"},
		{name: "bad drawing type", args: []string{missing, "circle"}, want: "Error: unknown drawing type"},
		{name: "missing arguments", args: []string{missing}, want: "Error: expected an image path and a drawing type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=^TestMainExitCode$")
			cmd.Env = append(os.Environ(), mainArgsEnv+"="+strings.Join(tc.args, string(os.PathListSeparator)))
			var stderr bytes.Buffer
			cmd.Stderr = &stderr

			err := cmd.Run()
			var exitErr *exec.ExitError
			require.True(t, errors.As(err, &exitErr), "expected a non-zero exit, got %v", err)
			assert.Equal(t, 1, exitErr.ExitCode())
			assert.Contains(t, stderr.String(), tc.want)
			assert.NotContains(t, stderr.String(), "panic")
			assert.NotContains(t, stderr.String(), "goroutine")
		})
	}
}
