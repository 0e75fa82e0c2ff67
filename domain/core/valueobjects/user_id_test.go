package valueobjects

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserID_Canonicalises(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "42", want: "42"},
		{name: "leading zeros", input: "00042", want: "42"},
		{name: "surrounding space", input: " 876274407995527169 ", want: "876274407995527169"},
		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "overflows int64", input: "18446744073709551615", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewUserID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
		})
	}
}

func TestUserID_EqualityIsByCanonicalForm(t *testing.T) {
	fromString := MustUserID("0099")
	fromInt, err := NewUserIDFromInt64(99)
	require.NoError(t, err)

	assert.True(t, fromString.Equals(fromInt))
	assert.Equal(t, fromString, fromInt)
	assert.Equal(t, int64(99), fromString.Int64())
}

func TestUserID_Less(t *testing.T) {
	assert.True(t, MustUserID("9").Less(MustUserID("10")))
	assert.False(t, MustUserID("10").Less(MustUserID("9")))
	assert.True(t, MustUserID("100").Less(MustUserID("101")))
}

func TestUserID_JSON(t *testing.T) {
	var payload struct {
		A UserID `json:"a"`
		B UserID `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"007","b":12}`), &payload))
	assert.Equal(t, "7", payload.A.String())
	assert.Equal(t, "12", payload.B.String())

	out, err := json.Marshal(payload.A)
	require.NoError(t, err)
	assert.Equal(t, `"7"`, string(out))
}

func TestClusteringParams_Key(t *testing.T) {
	assert.Equal(t, "graph_type=union", UnionParams().Key())
	assert.Equal(t, "graph_type=union", ClusteringParams{}.Key())

	p := ClusteringParams{GraphType: GraphTypeIntersection, Extra: map[string]string{"b": "2", "a": "1"}}
	assert.Equal(t, "graph_type=intersection;a=1;b=2", p.Key())
	assert.False(t, p.Equals(UnionParams()))
}
