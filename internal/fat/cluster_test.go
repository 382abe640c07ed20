package fat_test

import (
	"testing"

	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/stretchr/testify/require"
)

func TestClusterIsValid(t *testing.T) {
	tests := []struct {
		name    string
		cluster fat.Cluster
		valid   bool
	}{
		{"reserved zero", fat.Cluster{Index: 0}, false},
		{"reserved one", fat.Cluster{Index: 1}, false},
		{"first data cluster", fat.Cluster{Index: 2}, true},
		{"ordinary cluster", fat.Cluster{Index: 1552}, true},
		{"below end marker", fat.Cluster{Index: fat.EndOfChainMark - 1}, true},
		{"end marker range", fat.Cluster{Index: fat.EndOfChainMark}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.valid, tt.cluster.IsValid())
		})
	}
}

func TestClusterIsFree(t *testing.T) {
	require.True(t, fat.Cluster{Index: 5, NextIndex: fat.FreeMark}.IsFree())
	require.False(t, fat.Cluster{Index: 5, NextIndex: 6}.IsFree())
}
