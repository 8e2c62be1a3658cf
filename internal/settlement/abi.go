package settlement

import "github.com/ethereum/go-ethereum/accounts/abi/bind"

const submitTransferMethod = "submitTransfer"

// RollupMetaData holds the part of the rollup contract ABI the operator calls.
var RollupMetaData = &bind.MetaData{
	ABI: "[{\"type\":\"function\",\"name\":\"submitTransfer\",\"inputs\":[{\"name\":\"stateRoots\",\"type\":\"bytes32[]\",\"internalType\":\"bytes32[]\"},{\"name\":\"signatures\",\"type\":\"uint256[2][]\",\"internalType\":\"uint256[2][]\"},{\"name\":\"feeReceivers\",\"type\":\"uint256[]\",\"internalType\":\"uint256[]\"},{\"name\":\"txss\",\"type\":\"bytes[]\",\"internalType\":\"bytes[]\"}],\"outputs\":[],\"stateMutability\":\"payable\"},{\"type\":\"function\",\"name\":\"nextBatchID\",\"inputs\":[],\"outputs\":[{\"name\":\"\",\"type\":\"uint256\",\"internalType\":\"uint256\"}],\"stateMutability\":\"view\"}]",
}
