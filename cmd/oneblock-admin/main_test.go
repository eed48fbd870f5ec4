// ABOUTME: Tests for admin CLI argument parsing helpers
// ABOUTME: Covers flag/positional splitting, unknown flags, and limit parsing

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneblock/oneblock-gateway/internal/store"
)

func TestParseFlags(t *testing.T) {
	flags, positional, err := parseFlags([]string{"0xabc", "--reason", "duplicate account"}, "reason")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xabc"}, positional)
	assert.Equal(t, "duplicate account", flags["reason"])

	_, _, err = parseFlags([]string{"--force", "yes"}, "reason")
	assert.Error(t, err)

	_, _, err = parseFlags([]string{"--reason"}, "reason")
	assert.Error(t, err)
}

func TestParseLimit(t *testing.T) {
	n, err := parseLimit(map[string]string{})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = parseLimit(map[string]string{"limit": "25"})
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	_, err = parseLimit(map[string]string{"limit": "-1"})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestAuditFilter(t *testing.T) {
	filter, err := auditFilter(map[string]string{
		"action": "approve_registration",
		"target": "0x00000000000000000000000000000000000ABC01",
		"limit":  "5",
	})
	require.NoError(t, err)
	require.NotNil(t, filter.Action)
	assert.Equal(t, store.AuditApproveRegistration, *filter.Action)
	require.NotNil(t, filter.TargetID)
	assert.Equal(t, "0x00000000000000000000000000000000000abc01", *filter.TargetID)
	assert.Equal(t, 5, filter.Limit)
	assert.Nil(t, filter.Actor)

	_, err = auditFilter(map[string]string{"action": "approve"})
	assert.Error(t, err)

	_, err = auditFilter(map[string]string{"target": "alice"})
	assert.Error(t, err)
}
