package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamer/pkg/config"
	"dreamer/pkg/persona"
	"dreamer/pkg/schema"
	"dreamer/pkg/store"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		historyCmd.Flags().Set("json", "false")
		personaCmd.Flags().Set("json", "false")
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dreams.json")
	t.Setenv("DREAMER_STORE_PATH", path)

	records := store.New(store.File{Path: path})
	for _, tr := range []schema.PersonalityTraits{{Creativity: 80, Logic: 20, Emotion: 60, Spirituality: 40, Realism: 30}, {Creativity: 60, Logic: 40, Emotion: 40, Spirituality: 60, Realism: 50}} {
		traits := tr
		records.Insert(records.NewRecord("I was flying over the sea", schema.Analysis{
			EmotionalTone:     "serene",
			PersonalityTraits: &traits,
		}))
	}
	return path
}

func TestHistory(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		t.Setenv("DREAMER_STORE_PATH", filepath.Join(t.TempDir(), "none.json"))
		assert.Contains(t, execute(t, "history"), "No dreams recorded yet.")
	})

	t.Run("table", func(t *testing.T) {
		seed(t)
		out := execute(t, "history")
		assert.Contains(t, out, "TONE")
		assert.Contains(t, out, "serene")
		assert.Contains(t, out, "I was flying over the sea")
	})

	t.Run("json", func(t *testing.T) {
		seed(t)
		var list []schema.DreamRecord
		require.NoError(t, json.Unmarshal([]byte(execute(t, "history", "--json")), &list))
		assert.Len(t, list, 2)
	})
}

func TestPersona(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		t.Setenv("DREAMER_STORE_PATH", filepath.Join(t.TempDir(), "none.json"))
		assert.Contains(t, execute(t, "persona"), "radar is empty")
	})

	t.Run("json", func(t *testing.T) {
		seed(t)
		var p persona.Profile
		require.NoError(t, json.Unmarshal([]byte(execute(t, "persona", "--json")), &p))
		assert.Equal(t, 2, p.Count)
		assert.Equal(t, schema.PersonalityTraits{Creativity: 70, Logic: 30, Emotion: 50, Spirituality: 50, Realism: 40}, p.Traits)
		assert.False(t, p.Placeholder)
	})

	t.Run("bars", func(t *testing.T) {
		seed(t)
		out := execute(t, "persona")
		assert.Contains(t, out, "Persona over 2 dreams")
		assert.Contains(t, out, "creativity     70 ##############")
	})
}

func TestOpenStore(t *testing.T) {
	records, closeStore, err := openStore(config.Store{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "dreams.db")})
	require.NoError(t, err)
	defer closeStore()

	records.Insert(records.NewRecord("a dream", schema.Analysis{}))
	assert.Len(t, records.List(), 1)
}
