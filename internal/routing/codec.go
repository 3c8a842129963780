package routing

import (
	"bytes"
	"encoding/json"
	"fmt"

	"overlay-router/internal/common/errors"
)

const tupleFields = 5

// MarshalJSON encodes the tuple as
// [source, destination, gatewayCommunity, gatewayMemberID, cost]
func (t Tuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([tupleFields]interface{}{t.Source, t.Destination, t.GatewayCommunity, t.GatewayMemberID, t.Cost})
}

// UnmarshalJSON decodes the 5-element array form
func (t *Tuple) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("tuple is not an array: %w", err)
	}
	if len(fields) != tupleFields {
		return fmt.Errorf("tuple has %d fields, want %d", len(fields), tupleFields)
	}

	ids := make([]string, 4)
	for i := range ids {
		if err := json.Unmarshal(fields[i], &ids[i]); err != nil {
			return fmt.Errorf("field %d is not a string: %w", i, err)
		}
		if ids[i] == "" {
			return fmt.Errorf("field %d is empty", i)
		}
	}

	var cost int
	dec := json.NewDecoder(bytes.NewReader(fields[4]))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("cost is not a number: %w", err)
	}
	c, err := n.Int64()
	if err != nil {
		return fmt.Errorf("cost %s is not an integer", n)
	}
	cost = int(c)
	if cost < 1 {
		return fmt.Errorf("cost %d below 1", cost)
	}

	*t = Tuple{
		Source:           ids[0],
		Destination:      ids[1],
		GatewayCommunity: ids[2],
		GatewayMemberID:  ids[3],
		Cost:             cost,
	}
	return nil
}

// EncodeTable serializes tuples into the exchange form
func EncodeTable(tuples []Tuple) ([]byte, error) {
	if tuples == nil {
		tuples = []Tuple{}
	}
	data, err := json.Marshal(tuples)
	if err != nil {
		return nil, errors.FormatError("encode routing table", err)
	}
	return data, nil
}

// DecodeTable parses the exchange form. Any malformed tuple rejects the whole
// table with a format error.
func DecodeTable(data []byte) ([]Tuple, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.FormatError("routing table is not a JSON array", err)
	}

	tuples := make([]Tuple, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &tuples[i]); err != nil {
			return nil, errors.FormatError("malformed routing table tuple", err).WithContext("index", i)
		}
	}
	return tuples, nil
}
