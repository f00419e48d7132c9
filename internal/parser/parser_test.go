package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WellFormedShard(t *testing.T) {
	shard := `[
	  {
	    "title": "Alpha Quest - FitGirl Repacks",
	    "tags": ["Action", "Racing"],
	    "description": "Fast cars.",
	    "url": "https://example.test/alpha/",
	    "repackFeatures": ["100% Lossless"],
	    "metadata": {"companies": "Dev, Pub", "languages": "ENG/MULTI8", "originalSize": "65.2 GB", "repackSize": "30 GB"}
	  }
	]`

	got, err := NewShardParser().Parse(3, []byte(shard))
	require.NoError(t, err)
	require.Len(t, got, 1)

	d := got[0]
	assert.Equal(t, 3, d.Page)
	assert.Equal(t, 0, d.Index)
	assert.Empty(t, d.Issues)
	assert.Equal(t, "Alpha Quest - FitGirl Repacks", d.Record.Title)
	assert.Equal(t, []string{"Action", "Racing"}, d.Record.Tags)
	assert.Equal(t, "Dev, Pub", d.Record.Metadata.Companies)
	assert.Equal(t, "30 GB", d.Record.Metadata.RepackSize)
	assert.Equal(t, []string{"100% Lossless"}, d.Record.RepackFeatures)
}

func TestParse_MalformedFieldsKeepRecord(t *testing.T) {
	shard := `[
	  {"title": "Broken Tags", "tags": [1, "Puzzle", null], "metadata": "oops"},
	  {"title": 42, "tags": "Action, RPG"},
	  "not an object",
	  {"title": null, "description": {"nested": true}}
	]`

	got, err := NewShardParser().Parse(1, []byte(shard))
	require.NoError(t, err)
	require.Len(t, got, 4, "no record may be dropped")

	assert.Equal(t, []string{"Puzzle"}, got[0].Record.Tags)
	assert.ElementsMatch(t, []string{"tags", "metadata"}, got[0].Issues)

	assert.Equal(t, "42", got[1].Record.Title)
	assert.Equal(t, []string{"Action", "RPG"}, got[1].Record.Tags)

	assert.Equal(t, []string{"record"}, got[2].Issues)
	assert.Empty(t, got[2].Record.Title)

	assert.Empty(t, got[3].Record.Title)
	assert.Equal(t, []string{"description"}, got[3].Issues)
}

func TestParse_ShardLevelErrors(t *testing.T) {
	p := NewShardParser()

	got, err := p.Parse(1, []byte("   "))
	require.NoError(t, err, "an empty shard is just empty")
	assert.Empty(t, got)

	_, err = p.Parse(2, []byte(`{"title": "x"}`))
	assert.True(t, errors.Is(err, ErrNotArray))

	_, err = p.Parse(3, []byte(`[{"title": "x"`))
	assert.Error(t, err)
}
