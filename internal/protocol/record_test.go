package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rrerr "railrelay/internal/errors"
)

func TestSplitRecords_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  Record
	}{
		{
			name:  "identification",
			chunk: `{"name": "alice", "msg": "!FIRST_CONNECTION!"}`,
			want:  Record{Name: "alice", Msg: FirstConnection},
		},
		{
			name:  "payload",
			chunk: `{"msg": "HOLELWRDLO", "key": 3}`,
			want:  Record{Msg: "HOLELWRDLO", Key: 3},
		},
		{
			name:  "trailing newline",
			chunk: "{\"msg\": \"!DISCONNECTED!\", \"key\": 2}\n",
			want:  Record{Msg: Disconnected, Key: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitRecords([]byte(tt.chunk))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestSplitRecords_BackToBack(t *testing.T) {
	chunk := `{"name":"bob","msg":"!FIRST_CONNECTION!"}{"msg":"ATCAOCTAKTNE","key":2}`
	got, err := SplitRecords([]byte(chunk))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsIdentification())
	assert.Equal(t, 2, got[1].Key)
}

func TestSplitRecords_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		chunk []byte
	}{
		{"not json", []byte("hello")},
		{"truncated", []byte(`{"msg": "abc", "ke`)},
		{"missing msg", []byte(`{"key": 3}`)},
		{"payload without key", []byte(`{"msg": "abc"}`)},
		{"string key", []byte(`{"msg": "abc", "key": "3"}`)},
		{"identification without name", []byte(`{"msg": "!FIRST_CONNECTION!"}`)},
		{"array", []byte(`[1,2,3]`)},
		{"invalid utf8", []byte{'{', 0xff, 0xfe, '}'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SplitRecords(tt.chunk)
			assert.ErrorIs(t, err, rrerr.ErrMalformedRecord)
		})
	}
}

func TestSplitRecords_KeepsRecordsBeforeFailure(t *testing.T) {
	chunk := `{"name":"carol","msg":"!FIRST_CONNECTION!"}garbage`
	got, err := SplitRecords([]byte(chunk))
	assert.ErrorIs(t, err, rrerr.ErrMalformedRecord)
	require.Len(t, got, 1)
	assert.Equal(t, "carol", got[0].Name)
}

func TestRecordPredicates(t *testing.T) {
	assert.True(t, Identify("dave").IsIdentification())
	assert.False(t, Identify("dave").IsDisconnect())
	assert.True(t, Disconnect(1).IsDisconnect())
	assert.False(t, Payload("xyz", 2).IsDisconnect())
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Identify("erin")))
	assert.JSONEq(t, `{"name":"erin","msg":"!FIRST_CONNECTION!"}`, buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, Payload("HOLELWRDLO", 3)))
	assert.JSONEq(t, `{"msg":"HOLELWRDLO","key":3}`, buf.String())
}
