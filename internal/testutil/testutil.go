// Package testutil provides shared test helpers for the identity-core
// test suite.
//
// All helpers accept [testing.TB] for compatibility with both tests and
// benchmarks, and call t.Helper() so failure messages report the
// caller's file and line number rather than this package's.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// RequireErrorCode halts the test if err is nil, is not an *iderr.Error,
// or does not carry the expected error code. This is the primary helper
// for validating the service's error taxonomy.
//
// Example:
//
//	_, err := store.Create(ctx, duplicate)
//	testutil.RequireErrorCode(t, err, iderr.CodeConflictDuplicateKey)
func RequireErrorCode(t testing.TB, err error, code iderr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	idErr, ok := iderr.AsError(err)
	require.True(t, ok, "expected *iderr.Error, got %T: %v", err, err)
	require.Equal(t, code, idErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		idErr.Code, code, idErr.Message)
}

// AssertErrorCode records a test failure (without halting) if err does
// not carry the expected error code. Use in table-driven tests where all
// rows should be checked.
func AssertErrorCode(t testing.TB, err error, code iderr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	idErr, ok := iderr.AsError(err)
	if !assert.True(t, ok, "expected *iderr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, idErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		idErr.Code, code, idErr.Message)
}

// TempConfigFile creates a temporary file with the given content and
// extension (e.g. ".yaml", ".json") inside t.TempDir(). The file is
// cleaned up when the test finishes.
func TempConfigFile(t testing.TB, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config"+ext)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600),
		"failed to write temp config file %s", path)
	return path
}

// AssertJSONContains marshals v and asserts the JSON contains the
// expected substring.
func AssertJSONContains(t testing.TB, v any, expected string) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err, "json.Marshal failed")
	assert.Contains(t, string(data), expected)
}

// AssertJSONNotContains marshals v and asserts the JSON does not contain
// the given substring. Used to verify secrets stay redacted.
func AssertJSONNotContains(t testing.TB, v any, unexpected string) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err, "json.Marshal failed")
	assert.NotContains(t, string(data), unexpected,
		"expected JSON to NOT contain %q, got: %s", unexpected, string(data))
}
