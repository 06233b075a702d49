// ABOUTME: easyjson marshalers for Transition (jwriter/jlexer, no reflection)
// ABOUTME: Wire shape: {"from","to","at","trigger","confidence"}; unknown keys are skipped

package modes

import (
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

var (
	_ easyjson.Marshaler   = Transition{}
	_ easyjson.Unmarshaler = (*Transition)(nil)
)

func decodeTransition(in *jlexer.Lexer, out *Transition) {
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
		case "from":
			out.From = ID(in.String())
		case "to":
			out.To = ID(in.String())
		case "at":
			if data := in.Raw(); in.Ok() {
				in.AddError(out.At.UnmarshalJSON(data))
			}
		case "trigger":
			out.Trigger = Trigger(in.String())
		case "confidence":
			out.Confidence = in.Float64()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

func encodeTransition(out *jwriter.Writer, in Transition) {
	out.RawByte('{')
	out.RawString(`"from":`)
	out.String(string(in.From))
	out.RawString(`,"to":`)
	out.String(string(in.To))
	out.RawString(`,"at":`)
	out.Raw(in.At.MarshalJSON())
	out.RawString(`,"trigger":`)
	out.String(string(in.Trigger))
	out.RawString(`,"confidence":`)
	out.Float64(in.Confidence)
	out.RawByte('}')
}

// MarshalJSON supports json.Marshaler.
func (v Transition) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	encodeTransition(&w, v)
	return w.Buffer.BuildBytes(), w.Error
}

// MarshalEasyJSON supports easyjson.Marshaler.
func (v Transition) MarshalEasyJSON(w *jwriter.Writer) {
	encodeTransition(w, v)
}

// UnmarshalJSON supports json.Unmarshaler.
func (v *Transition) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	decodeTransition(&r, v)
	return r.Error()
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler.
func (v *Transition) UnmarshalEasyJSON(l *jlexer.Lexer) {
	decodeTransition(l, v)
}
