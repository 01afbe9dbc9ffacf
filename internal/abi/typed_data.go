package abi

import "encoding/json"

// typedDataJSON mirrors the wire shape of an eth_signTypedData_v4 payload
// (EIP-712's JSON encoding): a type registry, the primary type name, the
// domain separator fields, and the message itself.
type typedDataJSON struct {
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Domain      struct {
		Name string `json:"name"`
	} `json:"domain"`
	Message map[string]any `json:"message"`
}

// ParseTypedDataJSON decodes the raw JSON string eth_signTypedData_v4
// carries in params[1] into the TypedData shape ClassifyPermit expects.
func ParseTypedDataJSON(raw []byte) (TypedData, error) {
	var doc typedDataJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return TypedData{}, err
	}
	return TypedData{
		Domain:      TypedDataDomain{Name: doc.Domain.Name},
		PrimaryType: doc.PrimaryType,
		Types:       doc.Types,
		Message:     doc.Message,
	}, nil
}
