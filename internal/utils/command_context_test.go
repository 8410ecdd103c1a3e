package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithRunIdentifierStoresNormalizedValue(t *testing.T) {
	accessor := NewCommandContextAccessor()
	base := context.Background()
	enriched := accessor.WithRunIdentifier(base, "  run-42 ")

	runIdentifier, exists := accessor.RunIdentifier(enriched)
	require.True(t, exists)
	require.Equal(t, "run-42", runIdentifier)
}

func TestWithRunIdentifierSkipsEmptyValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithRunIdentifier(context.Background(), "   ")

	_, exists := accessor.RunIdentifier(enriched)
	require.False(t, exists)
}

func TestWithConfigurationFilePathStoresValue(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithConfigurationFilePath(nil, "/tmp/config.yaml")

	configurationFilePath, exists := accessor.ConfigurationFilePath(enriched)
	require.True(t, exists)
	require.Equal(t, "/tmp/config.yaml", configurationFilePath)
}

func TestWithExecutionFlagsStoresValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	base := context.Background()
	flags := ExecutionFlags{DryRun: true, DryRunSet: true}

	enriched := accessor.WithExecutionFlags(base, flags)

	retrieved, exists := accessor.ExecutionFlags(enriched)
	require.True(t, exists)
	require.Equal(t, flags, retrieved)
}

func TestWithExecutionFlagsHandlesMissingContext(t *testing.T) {
	accessor := NewCommandContextAccessor()

	_, exists := accessor.ExecutionFlags(context.Background())
	require.False(t, exists)
}
