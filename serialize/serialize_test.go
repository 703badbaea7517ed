package serialize

import (
	"errors"
	"testing"

	"github.com/chronocache/chronocache/cerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string
	Count int
}

func TestJSONRoundTrip(t *testing.T) {
	s := JSON{}
	data, err := s.Serialize(payload{Name: "a", Count: 3})
	require.NoError(t, err)

	var out payload
	require.NoError(t, s.Deserialize(data, &out))
	assert.Equal(t, payload{Name: "a", Count: 3}, out)
}

func TestJSONDeserializeErrorIsWrapped(t *testing.T) {
	s := JSON{}
	var out payload
	err := s.Deserialize([]byte("not json"), &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerr.ErrDeserialization))
}

func TestMsgPackRoundTrip(t *testing.T) {
	s := MsgPack{}
	data, err := s.Serialize(payload{Name: "b", Count: 7})
	require.NoError(t, err)

	var out payload
	require.NoError(t, s.Deserialize(data, &out))
	assert.Equal(t, payload{Name: "b", Count: 7}, out)
}

func TestMsgPackDeserializeErrorIsWrapped(t *testing.T) {
	s := MsgPack{}
	var out payload
	err := s.Deserialize([]byte{0xff, 0xff, 0xff}, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerr.ErrDeserialization))
}
