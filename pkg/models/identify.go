package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// IdentifyRequest is the wire shape of an identify call. Either field may be
// omitted, null, or blank.
type IdentifyRequest struct {
	Email       FlexString `json:"email"`
	PhoneNumber FlexString `json:"phoneNumber"`
}

// ConsolidatedContact is the canonical view of one cluster.
type ConsolidatedContact struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

type IdentifyResponse struct {
	Contact ConsolidatedContact `json:"contact"`
}

// MessageResponse is returned by administrative operations with no payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// FlexString decodes a JSON string or number into its string form. Null
// decodes to "".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*f = FlexString(n.String())
		return nil
	}
}

func (f FlexString) String() string {
	return string(f)
}
