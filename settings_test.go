package sumi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_RoundTrip(t *testing.T) {
	e := NewEngine(nil)
	e.UseSeededRandom(99)
	l, _ := e.Layers().Get("ink")
	l.Rendering.Color = [3]float32{0.2, 0.1, 0.6}
	l.Rendering.Opacity = 0.7
	l.Rendering.Visible = AllDotsVisible.Without(DotMicro)
	l.Physics.Force = 0.9
	l.Dots[DotSmall].Count = 12

	data, err := e.ExportSettings()
	require.NoError(t, err)

	restored := NewEngine(nil)
	require.NoError(t, restored.ImportSettings(data))

	rl, ok := restored.Layers().Get("ink")
	require.True(t, ok)
	assert.Equal(t, l.Rendering.Color, rl.Rendering.Color)
	assert.Equal(t, float32(0.7), rl.Rendering.Opacity)
	assert.Equal(t, l.Rendering.Visible, rl.Rendering.Visible)
	assert.Equal(t, float32(0.9), rl.Physics.Force)
	assert.Equal(t, 12, rl.Dots[DotSmall].Count)
	assert.True(t, restored.seeded)
	assert.Equal(t, uint64(99), restored.seed)
}

func TestSettings_ExportCarriesSchemaVersion(t *testing.T) {
	e := NewEngine(nil)
	data, err := e.ExportSettings()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(SettingsSchemaVersion), doc["schemaVersion"])
}

func TestSettings_AbsentFieldsKeepPriorValues(t *testing.T) {
	e := NewEngine(nil)
	l, _ := e.Layers().Get("ink")
	l.Rendering.Opacity = 0.4
	l.Physics.NoiseAmplitude = 0.8

	// Only the color is present; everything else must survive.
	doc := `{"schemaVersion": 3, "layers": [{"name": "ink", "color": [1, 0, 0]}]}`
	require.NoError(t, e.ImportSettings([]byte(doc)))

	assert.Equal(t, [3]float32{1, 0, 0}, l.Rendering.Color)
	assert.Equal(t, float32(0.4), l.Rendering.Opacity)
	assert.Equal(t, float32(0.8), l.Physics.NoiseAmplitude)
}

func TestSettings_MalformedDocumentLeavesStateUntouched(t *testing.T) {
	e := NewEngine(nil)
	l, _ := e.Layers().Get("ink")
	before := *l

	require.Error(t, e.ImportSettings([]byte(`{"schemaVersion": `)))
	assert.Equal(t, before, *l)
}

func TestSettings_NewerSchemaRejected(t *testing.T) {
	e := NewEngine(nil)
	doc := `{"schemaVersion": 4}`
	err := e.ImportSettings([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer")
}

func TestSettings_OlderSchemaAccepted(t *testing.T) {
	e := NewEngine(nil)
	doc := `{"schemaVersion": 1, "layers": [{"name": "ink", "opacity": 0.5}]}`
	require.NoError(t, e.ImportSettings([]byte(doc)))
	l, _ := e.Layers().Get("ink")
	assert.Equal(t, float32(0.5), l.Rendering.Opacity)
}

func TestSettings_UnknownLayersAndTypesSkipped(t *testing.T) {
	e := NewEngine(nil)
	doc := `{
		"schemaVersion": 3,
		"layers": [
			{"name": "ghost", "opacity": 0.1},
			{"name": "ink", "dots": {"titanic": {"count": 5}, "small": {"count": 9}}}
		]
	}`
	require.NoError(t, e.ImportSettings([]byte(doc)))

	l, _ := e.Layers().Get("ink")
	assert.Equal(t, 9, l.Dots[DotSmall].Count)
	_, ghostExists := e.Layers().Get("ghost")
	assert.False(t, ghostExists)
}

func TestSettings_OutOfRangeValuesClamped(t *testing.T) {
	e := NewEngine(nil)
	doc := `{
		"schemaVersion": 3,
		"layers": [{
			"name": "ink",
			"opacity": 3.5,
			"color": [2, -1, 0.5],
			"physics": {"force": -2}
		}]
	}`
	require.NoError(t, e.ImportSettings([]byte(doc)))

	l, _ := e.Layers().Get("ink")
	assert.Equal(t, float32(1), l.Rendering.Opacity)
	assert.Equal(t, [3]float32{1, 0, 0.5}, l.Rendering.Color)
	assert.Equal(t, float32(0), l.Physics.Force)
}

func TestSettings_NegativeDotCountIgnored(t *testing.T) {
	e := NewEngine(nil)
	l, _ := e.Layers().Get("ink")
	prior := l.Dots[DotMicro].Count

	doc := `{"schemaVersion": 3, "layers": [{"name": "ink", "dots": {"micro": {"count": -4}}}]}`
	require.NoError(t, e.ImportSettings([]byte(doc)))
	assert.Equal(t, prior, l.Dots[DotMicro].Count)
}

func TestSettings_ImportSwitchesRngMode(t *testing.T) {
	e := NewEngine(nil)
	doc := `{"schemaVersion": 3, "rngMode": "seeded", "rngSeed": 42}`
	require.NoError(t, e.ImportSettings([]byte(doc)))
	assert.True(t, e.seeded)
	assert.Equal(t, uint64(42), e.seed)

	doc = `{"schemaVersion": 3, "rngMode": "entropy"}`
	require.NoError(t, e.ImportSettings([]byte(doc)))
	assert.False(t, e.seeded)

	// Unknown modes warn and keep the current source.
	doc = `{"schemaVersion": 3, "rngMode": "dice"}`
	require.NoError(t, e.ImportSettings([]byte(doc)))
	assert.False(t, e.seeded)
}

func TestSettings_ImportMarksFrameDirty(t *testing.T) {
	e := NewEngine(nil)
	e.Coordinator().Rebuild()
	require.False(t, e.Coordinator().Dirty())

	require.NoError(t, e.ImportSettings([]byte(`{"schemaVersion": 3}`)))
	assert.True(t, e.Coordinator().Dirty())
}
