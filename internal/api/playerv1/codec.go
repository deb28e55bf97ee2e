package playerv1

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// Codec marshals the plain Go messages of this package as JSON. It takes
// the "json" name so that Connect clients and curl interoperate.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string {
	return "json"
}

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
