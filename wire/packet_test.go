package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/marionette/api"
)

func TestResponseEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *Response
		want string
	}{
		{
			name: "value",
			resp: NewValue("s1", map[string]interface{}{"rotatable": false}),
			want: `{"from":"0","sessionId":"s1","value":{"rotatable":false}}`,
		},
		{
			name: "null_value_no_session",
			resp: NewValue("", nil),
			want: `{"from":"0","sessionId":null,"value":null}`,
		},
		{
			name: "ok",
			resp: NewOK(),
			want: `{"from":"0","ok":true}`,
		},
		{
			name: "dialog_ok",
			resp: NewDialogOK(),
			want: `{"from":"0","ok":true,"value":null}`,
		},
		{
			name: "error",
			resp: NewError(api.NewError(api.NoSuchAlert, "No dialog")),
			want: `{"from":"0","error":{"message":"No dialog","status":27,"stacktrace":null}}`,
		},
		{
			name: "error_with_stack",
			resp: NewError(&api.Error{Kind: api.JavaScriptError, Message: "x is not defined", Stacktrace: "at 1:1"}),
			want: `{"from":"0","error":{"message":"x is not defined","status":17,"stacktrace":"at 1:1"}}`,
		},
		{
			name: "hello",
			resp: NewHello(),
			want: `{"from":"root","applicationType":"goanna","traits":[]}`,
		},
		{
			name: "marionette_id",
			resp: NewMarionetteID(),
			want: `{"from":"root","id":"0"}`,
		},
		{
			name: "emulator_cmd",
			resp: NewEmulatorCmd("gsm call 123", 3),
			want: `{"emulator_cmd":"gsm call 123","id":3}`,
		},
		{
			name: "emulator_shell",
			resp: NewEmulatorShell([]interface{}{"ls", "/"}, 4),
			want: `{"emulator_shell":["ls","/"],"id":4}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := Encode(tt.resp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var decoded Response
			require.NoError(t, decoded.UnmarshalJSON(data))
			assert.Equal(t, tt.resp.Kind, decoded.Kind)
		})
	}
}

func TestDecodeRequest(t *testing.T) {
	t.Parallel()

	req, err := DecodeRequest([]byte(`{"name":"get","to":"0","parameters":{"url":"http://example.test","n":3,"nested":{"a":[1,"b"]}}}`))
	require.NoError(t, err)
	assert.Equal(t, "get", req.Name)
	assert.Equal(t, "0", req.To)
	assert.Equal(t, "http://example.test", req.Parameters.StringOr("url", ""))
	assert.Equal(t, float64(3), req.Parameters["n"])
	assert.Equal(t, []interface{}{float64(1), "b"}, req.Parameters.Map("nested").Slice("a"))

	req, err = DecodeRequest([]byte(`{"name":"getWindowHandles","session_id":"abc","unknown":{"deep":[1,2]}}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", req.SessionID)
	assert.NotNil(t, req.Parameters)

	_, err = DecodeRequest([]byte(`{"parameters":{}}`))
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.InvalidArgument))

	_, err = DecodeRequest([]byte(`{"name":`))
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.InvalidArgument))
}

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Request{Name: "switchToFrame", Parameters: api.Params{"id": float64(0)}}
	data, err := Encode(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"switchToFrame","parameters":{"id":0}}`, string(data))

	out, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Parameters, out.Parameters)
}

func TestResponseDecodeError(t *testing.T) {
	t.Parallel()

	var r Response
	require.NoError(t, r.UnmarshalJSON([]byte(`{"from":"0","error":{"message":"timed out","status":28,"stacktrace":null}}`)))
	require.NotNil(t, r.Error)
	assert.Equal(t, KindError, r.Kind)
	assert.Equal(t, api.ScriptTimeout, r.Error.Kind)
	assert.Equal(t, "timed out", r.Error.Message)
}
