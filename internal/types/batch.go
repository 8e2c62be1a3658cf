package types

// BatchHeader describes a batch after its settlement transaction confirmed.
type BatchHeader struct {
	BatchID     uint64 `json:"batch_id"     cbor:"batch_id"`
	StateRoot   string `json:"state_root"   cbor:"state_root"` // hex
	TxRoot      string `json:"tx_root"      cbor:"tx_root"`    // hex
	TxCount     uint64 `json:"tx_count"     cbor:"tx_count"`
	FeeReceiver uint32 `json:"fee_receiver" cbor:"fee_receiver"`
	TokenID     uint32 `json:"token_id"     cbor:"token_id"`
	TotalFees   string `json:"total_fees"   cbor:"total_fees"` // decimal
	Signature   string `json:"signature"    cbor:"signature"`  // aggregate, hex
	TxHash      string `json:"tx_hash"      cbor:"tx_hash"`    // settlement tx
	BlockNumber uint64 `json:"block_number" cbor:"block_number"`
	TimeUTC     int64  `json:"time_utc"     cbor:"time_utc"`
}
