package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioMeta_KeepsUnknownKeys(t *testing.T) {
	in := []byte(`{"mode":"touch","start":{"M5":"2024-03-04T10:00:00+00:00"},"expired_reason":"time","note":"manual","score":0.7}`)

	var meta ScenarioMeta
	require.NoError(t, json.Unmarshal(in, &meta))
	assert.Equal(t, "touch", meta.Mode)
	assert.Equal(t, "time", meta.ExpiredReason)
	require.Contains(t, meta.Start, "M5")
	assert.Equal(t, map[string]any{"note": "manual", "score": 0.7}, meta.Extra)

	out, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.JSONEq(t, string(in), string(out))
}

func TestScenarioMeta_KnownFieldsWinOverExtra(t *testing.T) {
	meta := ScenarioMeta{Mode: "touch", Extra: map[string]any{"mode": "stale", "note": "x"}}

	out, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"touch","start":null,"note":"x"}`, string(out))
}

func TestScenarioMeta_NoExtraWhenAllKnown(t *testing.T) {
	var meta ScenarioMeta
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"touch","start":{}}`), &meta))
	assert.Nil(t, meta.Extra)
}
