package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearanceDefaults(t *testing.T) {
	table := NewClearanceTable()

	assert.InDelta(t, 0.43, table.Offset(MaterialSolid), 1e-6)
	assert.InDelta(t, 0.07, table.Offset(MaterialFence), 1e-6)
	// Неизвестный материал считается полным блоком
	assert.Equal(t, table.Offset(MaterialSolid), table.Offset(Material(999)))
}

func TestClearanceOverrides(t *testing.T) {
	table := NewClearanceTable()

	require.NoError(t, table.ApplyOverrides(map[string]float32{"fence": 0.1, "pane": 0.0}))
	assert.InDelta(t, 0.1, table.Offset(MaterialFence), 1e-6)
	assert.Zero(t, table.Offset(MaterialPane))

	err := table.ApplyOverrides(map[string]float32{"lava": 1})
	assert.Error(t, err)
}

func TestParseMaterial(t *testing.T) {
	m, ok := ParseMaterial("wall")
	require.True(t, ok)
	assert.Equal(t, MaterialWall, m)
	assert.Equal(t, "wall", m.String())

	_, ok = ParseMaterial("obsidian")
	assert.False(t, ok)
}
