package config

import (
	"strconv"

	"github.com/mailru/easyjson/jlexer"
)

// ParseJSON flattens a JSON object of objects and scalars. Arrays are
// rejected: no setting takes a list.
func ParseJSON(b []byte) (Map, error) {
	m := make(Map)
	in := jlexer.Lexer{Data: b}
	parseObject(&in, m, "")
	in.Consumed()
	if err := in.Error(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseObject(in *jlexer.Lexer, dst Map, prefix string) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := join(prefix, in.String())
		in.WantColon()

		switch {
		case in.IsNull():
			in.Skip()
		case in.IsDelim('{'):
			parseObject(in, dst, key)
		default:
			dst[key] = scalar(in)
		}
		in.WantComma()
	}
	in.Delim('}')
}

func scalar(in *jlexer.Lexer) string {
	v := in.Interface()
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		in.AddError(&jlexer.LexerError{Reason: "unsupported value for key"})
		return ""
	}
}
