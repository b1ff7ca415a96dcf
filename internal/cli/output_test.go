package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flags")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain error")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "verify failed", errors.New("inner")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}

func TestExitError_MessageAndUnwrap(t *testing.T) {
	inner := errors.New("db locked")
	e := WrapExitError(ExitCommandError, "open store", inner)
	assert.Equal(t, "open store: db locked", e.Error())
	assert.ErrorIs(t, e, inner)

	assert.Equal(t, "open store", NewExitError(ExitCommandError, "open store").Error())
}

func TestWriteJSON_Envelope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"runs": 3}, "trace-1"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "trace-1", resp.TraceID)
	assert.Nil(t, resp.Error)
	assert.Contains(t, buf.String(), "\n  ", "output is indented")
}

func TestOutputFormatter_ErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Error("verification_failed", "2 issues found", []string{"detail_links_missing"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "verification_failed", resp.Error.Code)
}

func TestOutputFormatter_ErrorText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf, Verbose: true}
	require.NoError(t, f.Error("bad_event", "event rejected", "occurred_at empty"))
	assert.Contains(t, buf.String(), "Error [bad_event]: event rejected")
	assert.Contains(t, buf.String(), "Details: occurred_at empty")
}

func TestOutputFormatter_VerboseLogTargetsErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}
	f.VerboseLog("loaded %d runs", 2)
	assert.Empty(t, out.String())
	assert.Equal(t, "loaded 2 runs\n", errOut.String())

	f.Verbose = false
	f.VerboseLog("ignored")
	assert.Equal(t, "loaded 2 runs\n", errOut.String())
}
