package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainArgsEnv = "PDHANDWRITING_TEST_MAIN_ARGS"

func TestRun_MissingImage(t *testing.T) {
	*modelPath = filepath.Join(t.TempDir(), "missing.onnx")

	err := run(filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "image not found")
	assert.NotContains(t, err.Error(), "load model", "the input is resolved before the model")
}

func TestMainExitCode(t *testing.T) {
	if args := os.Getenv(mainArgsEnv); args != "" {
		os.Args = append([]string{"pdhandwriting"}, strings.Split(args, string(os.PathListSeparator))...)
		main()
		return
	}

	missing := filepath.Join(t.TempDir(), "nope.png")
	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing image", args: []string{missing}, want: "Error: image not found"},
		{name: "extra arguments", args: []string{missing, "w"}, want: "Error: expected an image path"},
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
