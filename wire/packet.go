// Package wire holds the packets exchanged with remote control clients and
// their JSON encoding.
package wire

import (
	"encoding/json"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/liuxd6825/marionette/api"
)

const (
	// ActorID is the `from` value of every command response.
	ActorID = "0"
	// RootActor is the `from` value of connection level packets.
	RootActor = "root"
	// ApplicationType is announced in the hello packet.
	ApplicationType = "goanna"
)

// Request is a client command packet: {name, parameters}.
type Request struct {
	Name       string
	To         string
	SessionID  string
	Parameters api.Params
}

// Kind selects the shape of a Response.
type Kind int

// Response shapes.
const (
	KindValue Kind = iota
	KindOK
	KindDialogOK
	KindError
	KindHello
	KindMarionetteID
	KindEmulatorCmd
	KindEmulatorShell
)

// Response is a server packet.
type Response struct {
	Kind      Kind
	From      string
	SessionID string
	Value     interface{}
	Error     *api.Error
	// ID is the marionette id for KindMarionetteID and the callback id
	// for emulator requests.
	ID            interface{}
	EmulatorCmd   string
	EmulatorShell []interface{}
	Traits        []string
	AppType       string
}

// NewValue returns a {from, sessionId, value} response.
func NewValue(sessionID string, v interface{}) *Response {
	return &Response{Kind: KindValue, From: ActorID, SessionID: sessionID, Value: v}
}

// NewOK returns a bare {from, ok:true} acknowledgement.
func NewOK() *Response {
	return &Response{Kind: KindOK, From: ActorID}
}

// NewDialogOK returns the {from, ok:true, value:null} packet used to
// release a command interrupted by a modal dialog. Clients waiting on
// either `ok` or `value` accept it.
func NewDialogOK() *Response {
	return &Response{Kind: KindDialogOK, From: ActorID}
}

// NewError returns a {from, error:{message, status, stacktrace}} response.
func NewError(err *api.Error) *Response {
	return &Response{Kind: KindError, From: ActorID, Error: err}
}

// NewHello returns the packet sent once a client connects.
func NewHello() *Response {
	return &Response{Kind: KindHello, From: RootActor, AppType: ApplicationType, Traits: []string{}}
}

// NewMarionetteID returns the answer to getMarionetteID.
func NewMarionetteID() *Response {
	return &Response{Kind: KindMarionetteID, From: RootActor, ID: ActorID}
}

// NewEmulatorCmd returns an out-of-band emulator command request.
func NewEmulatorCmd(cmd string, id int64) *Response {
	return &Response{Kind: KindEmulatorCmd, EmulatorCmd: cmd, ID: id}
}

// NewEmulatorShell returns an out-of-band emulator shell request.
func NewEmulatorShell(args []interface{}, id int64) *Response {
	return &Response{Kind: KindEmulatorShell, EmulatorShell: args, ID: id}
}

type fieldWriter struct {
	w     *jwriter.Writer
	first bool
}

func (f *fieldWriter) key(name string) {
	if !f.first {
		f.w.RawByte(',')
	}
	f.first = false
	f.w.String(name)
	f.w.RawByte(':')
}

func writeValue(w *jwriter.Writer, v interface{}) {
	switch m := v.(type) {
	case nil:
		w.RawString("null")
	case easyjson.Marshaler:
		m.MarshalEasyJSON(w)
	case json.Marshaler:
		w.Raw(m.MarshalJSON())
	default:
		w.Raw(json.Marshal(v))
	}
}

// MarshalEasyJSON supports easyjson.Marshaler interface.
func (r *Response) MarshalEasyJSON(w *jwriter.Writer) {
	f := fieldWriter{w: w, first: true}
	w.RawByte('{')
	if r.From != "" {
		f.key("from")
		w.String(r.From)
	}
	switch r.Kind {
	case KindValue:
		f.key("sessionId")
		if r.SessionID == "" {
			w.RawString("null")
		} else {
			w.String(r.SessionID)
		}
		f.key("value")
		writeValue(w, r.Value)
	case KindOK:
		f.key("ok")
		w.Bool(true)
	case KindDialogOK:
		f.key("ok")
		w.Bool(true)
		f.key("value")
		w.RawString("null")
	case KindError:
		e := r.Error
		if e == nil {
			e = api.NewError(api.UnknownError, "unknown error")
		}
		f.key("error")
		w.RawByte('{')
		w.RawString(`"message":`)
		w.String(e.Message)
		w.RawString(`,"status":`)
		w.Int(e.Status())
		w.RawString(`,"stacktrace":`)
		if e.Stacktrace == "" {
			w.RawString("null")
		} else {
			w.String(e.Stacktrace)
		}
		w.RawByte('}')
	case KindHello:
		f.key("applicationType")
		w.String(r.AppType)
		f.key("traits")
		w.RawByte('[')
		for i, t := range r.Traits {
			if i > 0 {
				w.RawByte(',')
			}
			w.String(t)
		}
		w.RawByte(']')
	case KindMarionetteID:
		f.key("id")
		writeValue(w, r.ID)
	case KindEmulatorCmd:
		f.key("emulator_cmd")
		w.String(r.EmulatorCmd)
		f.key("id")
		writeValue(w, r.ID)
	case KindEmulatorShell:
		f.key("emulator_shell")
		writeValue(w, r.EmulatorShell)
		f.key("id")
		writeValue(w, r.ID)
	}
	w.RawByte('}')
}

// MarshalJSON supports json.Marshaler interface.
func (r *Response) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	r.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler interface.
func (r *Response) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	var hasValue, hasOK, hasSession bool
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			if key == "value" {
				hasValue = true
			}
			if key == "sessionId" {
				hasSession = true
			}
			in.WantComma()
			continue
		}
		switch key {
		case "from":
			r.From = in.String()
		case "sessionId":
			hasSession = true
			r.SessionID = in.String()
		case "value":
			hasValue = true
			r.Value = in.Interface()
		case "ok":
			hasOK = in.Bool()
		case "error":
			r.Kind = KindError
			r.Error = unmarshalError(in)
		case "applicationType":
			r.Kind = KindHello
			r.AppType = in.String()
		case "traits":
			r.Traits = []string{}
			in.Delim('[')
			for !in.IsDelim(']') {
				r.Traits = append(r.Traits, in.String())
				in.WantComma()
			}
			in.Delim(']')
		case "id":
			r.ID = in.Interface()
		case "emulator_cmd":
			r.Kind = KindEmulatorCmd
			r.EmulatorCmd = in.String()
		case "emulator_shell":
			r.Kind = KindEmulatorShell
			if args, ok := in.Interface().([]interface{}); ok {
				r.EmulatorShell = args
			}
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}

	switch {
	case r.Kind != KindValue:
	case hasOK && hasValue:
		r.Kind = KindDialogOK
	case hasOK:
		r.Kind = KindOK
	case hasValue || hasSession:
		r.Kind = KindValue
	case r.From == RootActor && r.ID != nil:
		r.Kind = KindMarionetteID
	}
}

func unmarshalError(in *jlexer.Lexer) *api.Error {
	e := &api.Error{}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "message":
			e.Message = in.String()
		case "status":
			e.Kind = api.KindFromStatus(int(in.Float64()))
		case "stacktrace":
			e.Stacktrace = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	return e
}

// UnmarshalJSON supports json.Unmarshaler interface.
func (r *Response) UnmarshalJSON(data []byte) error {
	l := jlexer.Lexer{Data: data}
	r.UnmarshalEasyJSON(&l)
	return l.Error()
}

// MarshalEasyJSON supports easyjson.Marshaler interface.
func (r *Request) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"name":`)
	w.String(r.Name)
	if r.To != "" {
		w.RawString(`,"to":`)
		w.String(r.To)
	}
	if r.SessionID != "" {
		w.RawString(`,"sessionId":`)
		w.String(r.SessionID)
	}
	w.RawString(`,"parameters":`)
	if r.Parameters == nil {
		w.RawString("{}")
	} else {
		writeValue(w, map[string]interface{}(r.Parameters))
	}
	w.RawByte('}')
}

// MarshalJSON supports json.Marshaler interface.
func (r *Request) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	r.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler interface.
func (r *Request) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "name":
			r.Name = in.String()
		case "to":
			r.To = in.String()
		case "sessionId", "session_id":
			r.SessionID = in.String()
		case "parameters":
			r.Parameters = make(api.Params)
			in.Delim('{')
			for !in.IsDelim('}') {
				k := in.String()
				in.WantColon()
				r.Parameters[k] = in.Interface()
				in.WantComma()
			}
			in.Delim('}')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
	if r.Parameters == nil {
		r.Parameters = make(api.Params)
	}
}

// UnmarshalJSON supports json.Unmarshaler interface.
func (r *Request) UnmarshalJSON(data []byte) error {
	l := jlexer.Lexer{Data: data}
	r.UnmarshalEasyJSON(&l)
	return l.Error()
}

// DecodeRequest decodes a request packet. Packets without a name are
// rejected.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := easyjson.Unmarshal(data, &req); err != nil {
		return nil, api.NewError(api.InvalidArgument, "malformed packet: %s", err)
	}
	if req.Name == "" {
		return nil, api.NewError(api.InvalidArgument, "packet has no command name")
	}
	return &req, nil
}

// Encode serializes p.
func Encode(p easyjson.Marshaler) ([]byte, error) {
	return easyjson.Marshal(p)
}
