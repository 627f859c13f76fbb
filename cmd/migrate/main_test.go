package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockyard-backend/pkg/migrate"
)

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, options{cmd: "up", dir: migrate.DefaultDir}, opts)
	assert.False(t, opts.offline())

	opts, err = parseOptions([]string{"-cmd", "create", "-name", "add_refunds"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, opts.offline())

	opts, err = parseOptions([]string{"-cmd=version", "-version=20260301120000"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "20260301120000", opts.version)
}

func TestParseOptionsRejects(t *testing.T) {
	for _, args := range [][]string{
		{"-cmd", "create"},
		{"-cmd", "version"},
		{"-cmd", "drop-everything"},
		{"-bogus"},
	} {
		_, err := parseOptions(args, io.Discard)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}
