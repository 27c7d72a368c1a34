package sysinfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostUptime(t *testing.T) {
	up, err := NewHost().Uptime(context.Background())

	require.NoError(t, err)
	assert.Positive(t, up)
}
