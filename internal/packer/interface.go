package packer

import "context"

//go:generate mockgen -typed -package=packer -destination=./mocks.go -source=./interface.go

// Pool is the part of the transfer pool the packer looks at.
type Pool interface {
	Empty() bool
}

// PackingCommand builds a batch from the pool and hands it to the
// settlement layer.
type PackingCommand interface {
	PackAndSubmit(ctx context.Context) (Submission, error)
}

// Submission is a batch accepted for settlement but not yet confirmed.
type Submission interface {
	Wait(ctx context.Context, confirmations uint64) (Confirmation, error)
}

// Confirmation is the settlement block that included a batch.
type Confirmation struct {
	BlockNumber uint64
}
