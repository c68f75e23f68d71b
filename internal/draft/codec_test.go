package draft

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehansi-9/gztprocessor/internal/roster"
)

func TestDecodeStringEncodedInitialDraft(t *testing.T) {
	inner := `{"transactions":[{"name":"Finance","departments":[{"name":"Trade","previous_ministry":"Commerce"}]}],"moves":[{"mName":"Finance","dName":"Trade","prevMinistry":"Commerce"}]}`
	wrapped, err := json.Marshal(inner)
	require.NoError(t, err)

	d, err := Decode(KindInitial, wrapped)
	require.NoError(t, err)
	in := d.(*Initial)
	require.Len(t, in.Ministers, 1)
	assert.True(t, in.Ministers[0].Departments[0].ShowPreviousMinistryEditor)
	assert.True(t, in.IsMoved("Finance", "Trade"))
}

func TestDecodeEmptyDraft(t *testing.T) {
	for _, body := range []string{``, `null`, `{}`} {
		d, err := Decode(KindPersonnel, []byte(body))
		require.NoError(t, err, body)
		assert.True(t, d.Empty())
	}
}

func TestEncodeDecodeAmendmentKeepsMoves(t *testing.T) {
	src := &Amendment{
		Adds:       []roster.OrgAdd{{Department: "Trade", ToMinistry: "Finance", Position: "2"}},
		Moves:      []roster.OrgMove{{Department: "Ports", FromMinistry: "Trade", ToMinistry: "Transport"}},
		Terminates: []roster.OrgTerminate{},
	}
	body, err := Encode(src)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.JSONEq(t, `[]`, string(raw["transactions"]))

	got, err := Decode(KindAmendment, body)
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestDecodeRawInitialAcceptsBareList(t *testing.T) {
	d, err := DecodeRaw(KindInitial, []byte(`[{"name":"Finance","departments":[{"name":"Trade"}]}]`))
	require.NoError(t, err)
	assert.Len(t, d.(*Initial).Ministers, 1)

	d, err = DecodeRaw(KindInitial, []byte(`{"transactions":[{"name":"Health","departments":[]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Health", d.(*Initial).Ministers[0].Name)
}

func TestDecodeRawPersonnel(t *testing.T) {
	body := `{"message":"ok","transactions":{"adds":[{"new_person":"A","new_ministry":"Health","new_position":"Minister"}],"moves":null,"terminates":[]}}`
	d, err := DecodeRaw(KindPersonnel, []byte(body))
	require.NoError(t, err)
	p := d.(*Personnel)
	require.Len(t, p.Adds, 1)
	assert.NotNil(t, p.Adds[0].SuggestedTerminates)
	assert.NotNil(t, p.Moves)
}

func TestDecodeRawAmendmentNumericPosition(t *testing.T) {
	body := `{"transactions":{"adds":[{"department":"Trade","to_ministry":"Finance","position":3}]}}`
	d, err := DecodeRaw(KindAmendment, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, roster.Position("3"), d.(*Amendment).Adds[0].Position)
}
