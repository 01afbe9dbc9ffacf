package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"sync/atomic"
)

// fakeNode is a minimal AnvilInstance double: enough bookkeeping to drive
// runSimulation's metadata-skip gating and Instance.ResetFork's
// revert-vs-anvil_reset fallback, without a real anvil process.
type fakeNode struct {
	snapshotCalls int32
	revertCalls   int32
	resetCalls    int32
	readContractCalls int32

	nextSnapshotID string
	revertErr      error
	resetErr       error

	receiptLogs []Log
}

func (f *fakeNode) Snapshot(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.snapshotCalls, 1)
	if f.nextSnapshotID != "" {
		return f.nextSnapshotID, nil
	}
	return "0x1", nil
}

func (f *fakeNode) Revert(ctx context.Context, id string) error {
	atomic.AddInt32(&f.revertCalls, 1)
	return f.revertErr
}

func (f *fakeNode) ImpersonateAccount(ctx context.Context, address string) error { return nil }
func (f *fakeNode) StopImpersonatingAccount(ctx context.Context, address string) error {
	return nil
}
func (f *fakeNode) SetBalance(ctx context.Context, address string, value *big.Int) error {
	return nil
}
func (f *fakeNode) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeNode) GetCode(ctx context.Context, address string) ([]byte, error) {
	return nil, nil
}
func (f *fakeNode) SendUnsignedTransaction(ctx context.Context, tx UnsignedTx) (string, error) {
	return "0xhash", nil
}
func (f *fakeNode) WaitForTransactionReceipt(ctx context.Context, hash string) (TxReceipt, error) {
	return TxReceipt{Status: 1, BlockNumber: 100, GasUsed: 21000, Logs: f.receiptLogs}, nil
}
func (f *fakeNode) Call(ctx context.Context, call CallParams) ([]byte, error) {
	return make([]byte, 32), nil
}
func (f *fakeNode) ReadContract(ctx context.Context, address, selector, blockNumber string) ([]byte, error) {
	atomic.AddInt32(&f.readContractCalls, 1)
	return nil, errors.New("fake node: metadata not implemented")
}
func (f *fakeNode) Request(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	atomic.AddInt32(&f.resetCalls, 1)
	if f.resetErr != nil {
		return nil, f.resetErr
	}
	return json.RawMessage(`null`), nil
}

// erc20TransferLog builds a receipt log for a Transfer(from, to, amount)
// event, matching logs.go's ParseLogs expectations for an ERC-20 (3
// indexed topics incl. event signature, >=32 bytes of data).
func erc20TransferLog(token, from, to string, amount int64) Log {
	return Log{
		Address: token,
		Topics:  []string{topicTransfer, addressTopic(from), addressTopic(to)},
		Data:    big.NewInt(amount).FillBytes(make([]byte, 32)),
	}
}

func addressTopic(addr string) string {
	clean := strings.TrimPrefix(addr, "0x")
	return "0x" + strings.Repeat("0", 64-len(clean)) + clean
}
