package util_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/util"
)

func TestSetMembership(t *testing.T) {
	s := util.SetOf[api.StepID]("a", "b", "a")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("c"))

	s.Add("c")
	s.Add("c")
	s.Remove("a")
	s.Remove("missing")
	assert.ElementsMatch(t, []api.StepID{"b", "c"}, s.Items())

	s.Remove("b")
	s.Remove("c")
	assert.True(t, s.IsEmpty())
}

func TestSetJSON(t *testing.T) {
	data, err := json.Marshal(util.Set[api.EventKey]{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	waits := util.SetOf[api.EventKey]("approve", "reject")
	data, err = json.Marshal(waits)
	require.NoError(t, err)

	var got util.Set[api.EventKey]
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, waits, got)

	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &got))
}
