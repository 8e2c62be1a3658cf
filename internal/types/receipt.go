package types

import "strings"

const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusAccepted  = "accepted"
	StatusDropped   = "dropped"
)

type TxReceipt struct {
	TxHash  string `json:"tx_hash"            cbor:"tx_hash"`
	From    uint32 `json:"from_index"         cbor:"from_index"`
	To      uint32 `json:"to_index"           cbor:"to_index"`
	Amount  string `json:"amount"             cbor:"amount"`
	Fee     string `json:"fee"                cbor:"fee"`
	Nonce   string `json:"nonce"              cbor:"nonce"`
	Status  string `json:"status"             cbor:"status"` // "accepted", "submitted" or "dropped:<reason>"
	BatchID uint64 `json:"batch_id,omitempty" cbor:"batch_id,omitempty"`
	TimeUTC int64  `json:"time_utc"           cbor:"time_utc"`
}

func DroppedStatus(reason string) string { return StatusDropped + ":" + reason }

func (r TxReceipt) Dropped() bool { return strings.HasPrefix(r.Status, StatusDropped) }
