package simulator

import (
	"context"
	"encoding/json"
	"math/big"
)

// UnsignedTx is the §6.3 sendUnsignedTransaction parameter set.
type UnsignedTx struct {
	From  string
	To    string
	Data  []byte
	Value *big.Int
}

// CallParams is the §6.3 call/eth_call parameter set.
type CallParams struct {
	From        string
	To          string
	Data        []byte
	Value       *big.Int
	BlockNumber string // "" means latest
}

// Log is one entry of a TxReceipt's log array, in the shape the §4.5 log
// parser consumes (raw topics/data, no ABI already applied).
type Log struct {
	Address string
	Topics  []string
	Data    []byte
}

// TxReceipt is the §6.3 waitForTransactionReceipt result.
type TxReceipt struct {
	Status            uint64
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Logs              []Log
}

// AnvilInstance is the consumer-side contract of §6.3: everything the
// fork simulator needs from an externally supplied forked-EVM node. It is
// a narrow interface so tests can drive the pipeline against a fake
// without a real anvil process, and so a forked-EVM backend other than
// anvil can satisfy the same shape.
type AnvilInstance interface {
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) error
	ImpersonateAccount(ctx context.Context, address string) error
	StopImpersonatingAccount(ctx context.Context, address string) error
	SetBalance(ctx context.Context, address string, value *big.Int) error
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	GetCode(ctx context.Context, address string) ([]byte, error)
	SendUnsignedTransaction(ctx context.Context, tx UnsignedTx) (string, error)
	WaitForTransactionReceipt(ctx context.Context, hash string) (TxReceipt, error)
	Call(ctx context.Context, call CallParams) ([]byte, error)
	// ReadContract is the common case of Call: a no-argument selector
	// read (symbol()/decimals()/name()) against address at an optional
	// historical block.
	ReadContract(ctx context.Context, address, selector, blockNumber string) ([]byte, error)
	Request(ctx context.Context, method string, params []any) (json.RawMessage, error)
}
