/*
codec.go - Payload serialization for durable stores

PURPOSE:
  Implements scd.PayloadCodec for forecast payloads. The durable store
  persists payload bytes without knowing the domain; this codec is the
  single place where forecast payloads meet JSON.

NOTE:
  Stored JSON is a persistence format only. Change detection never
  compares serialized bytes; it goes through Payload.Equal, which is
  immune to key ordering and float formatting.

SEE ALSO:
  - types.go: Payload definition and equality
  - store/sqlite/sqlite.go: The consumer of this codec
*/
package forecast

import (
	"encoding/json"
	"fmt"

	"github.com/warp/forecast-engine/scd"
)

// Codec serializes forecast payloads for the durable store.
type Codec struct{}

func NewCodec() Codec { return Codec{} }

func (Codec) MarshalPayload(p scd.Payload) ([]byte, error) {
	fp, ok := p.(Payload)
	if !ok {
		return nil, fmt.Errorf("codec: unexpected payload type %T", p)
	}
	return json.Marshal(fp)
}

func (Codec) UnmarshalPayload(data []byte) (scd.Payload, error) {
	var fp Payload
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, fmt.Errorf("codec: decode payload: %w", err)
	}
	return fp, nil
}
