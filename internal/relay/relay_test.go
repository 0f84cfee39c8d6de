package relay

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/model"
)

func TestGlobalIDRoundTrip(t *testing.T) {
	id := ToGlobalID(model.NodeTypeStory, 42)

	ref, err := FromGlobalID(id)
	require.NoError(t, err)
	assert.Equal(t, model.NodeTypeStory, ref.Type)
	assert.Equal(t, int64(42), ref.ID)
}

func TestFromGlobalIDRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"not base64", "!!not-base64!!"},
		{"no separator", base64.StdEncoding.EncodeToString([]byte("Story42"))},
		{"non-numeric id", base64.StdEncoding.EncodeToString([]byte("Story:forty-two"))},
		{"zero id", base64.StdEncoding.EncodeToString([]byte("Story:0"))},
		{"unknown type tag", base64.StdEncoding.EncodeToString([]byte("Widget:42"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromGlobalID(tt.id)
			require.Error(t, err)
			assert.Equal(t, gqlerrors.CodeInvalidReference, gqlerrors.Code(err))
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	for _, key := range []int64{1, 250, 1<<40 + 7} {
		cursor := ToCursor(key)
		got, err := FromCursor(cursor)
		require.NoError(t, err)
		assert.Equal(t, key, got)
	}
}

func TestFromCursorRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "%%%"},
		{"missing prefix", base64.StdEncoding.EncodeToString([]byte("17"))},
		{"non-numeric key", base64.StdEncoding.EncodeToString([]byte("cursor:v1:abc"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromCursor(tt.cursor)
			require.Error(t, err)
			assert.Equal(t, gqlerrors.CodeInvalidCursor, gqlerrors.Code(err))
		})
	}
}

func TestCursorIsNotAGlobalID(t *testing.T) {
	_, err := FromGlobalID(ToCursor(10))
	require.Error(t, err)
}
