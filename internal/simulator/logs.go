package simulator

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/assay-gate/assay/internal/abi"
)

// Event topics, computed from their canonical signatures rather than
// transcribed as 32-byte literals (see revert.go's selector comment —
// same reasoning, just full Keccak instead of a 4-byte prefix).
var (
	topicTransfer        = abi.EventTopic("Transfer(address,address,uint256)")
	topicApproval        = abi.EventTopic("Approval(address,address,uint256)")
	topicTransferSingle  = abi.EventTopic("TransferSingle(address,address,address,uint256,uint256)")
	topicTransferBatch   = abi.EventTopic("TransferBatch(address,address,address,uint256[],uint256[])")
	topicApprovalForAll  = abi.EventTopic("ApprovalForAll(address,address,bool)")
	topicPermit2Approval = abi.EventTopic("Approval(address,address,address,uint160,uint48)")
)

// TransferEvent is an un-classified (not-yet-relative-to-a-wallet) asset
// movement extracted from one log.
type TransferEvent struct {
	AssetType AssetType
	Token     string // empty for native; simulator never sees native transfer logs, kept for symmetry
	From      string
	To        string
	TokenID   *big.Int
	Amount    *big.Int
}

// ApprovalEvent is an un-filtered approval extracted from one log (§4.5
// step 6; the owner==from filter is applied later, step 9).
type ApprovalEvent struct {
	Standard         ApprovalStandard
	Token            string
	Owner            string
	Spender          string
	Amount           *big.Int
	PreviousAmount   *big.Int
	TokenID          *big.Int
	Scope            ApprovalScope
	Approved         bool
	PreviousApproved *bool
}

// ParseLogs implements §4.5 step 6: classify each receipt log into a
// transfer or approval event, distinguishing ERC-721 from ERC-20
// Transfer by topic count plus data-length heuristics.
func ParseLogs(logs []Log) ([]TransferEvent, []ApprovalEvent) {
	var transfers []TransferEvent
	var approvals []ApprovalEvent

	for _, lg := range logs {
		if len(lg.Topics) == 0 {
			continue
		}
		token := lg.Address
		switch lg.Topics[0] {
		case topicTransfer:
			switch {
			case len(lg.Topics) == 4:
				// ERC-721 Transfer: from, to, tokenId all indexed.
				transfers = append(transfers, TransferEvent{
					AssetType: AssetERC721,
					Token:     token,
					From:      topicAddress(lg.Topics[1]),
					To:        topicAddress(lg.Topics[2]),
					TokenID:   topicUint(lg.Topics[3]),
				})
			case len(lg.Topics) == 3 && len(lg.Data) >= 32:
				transfers = append(transfers, TransferEvent{
					AssetType: AssetERC20,
					Token:     token,
					From:      topicAddress(lg.Topics[1]),
					To:        topicAddress(lg.Topics[2]),
					Amount:    new(big.Int).SetBytes(lg.Data[:32]),
				})
			}

		case topicApproval:
			if len(lg.Topics) == 3 && len(lg.Data) >= 32 {
				approvals = append(approvals, ApprovalEvent{
					Standard: ApprovalERC20,
					Token:    token,
					Owner:    topicAddress(lg.Topics[1]),
					Spender:  topicAddress(lg.Topics[2]),
					Amount:   new(big.Int).SetBytes(lg.Data[:32]),
					Scope:    ScopeToken,
				})
			}

		case topicTransferSingle:
			if len(lg.Topics) == 4 && len(lg.Data) >= 64 {
				transfers = append(transfers, TransferEvent{
					AssetType: AssetERC1155,
					Token:     token,
					From:      topicAddress(lg.Topics[2]),
					To:        topicAddress(lg.Topics[3]),
					TokenID:   new(big.Int).SetBytes(lg.Data[:32]),
					Amount:    new(big.Int).SetBytes(lg.Data[32:64]),
				})
			}

		case topicTransferBatch:
			transfers = append(transfers, decodeTransferBatch(token, lg)...)

		case topicApprovalForAll:
			if len(lg.Topics) == 3 && len(lg.Data) >= 32 {
				approved := lg.Data[31] != 0
				approvals = append(approvals, ApprovalEvent{
					Standard: ApprovalERC721,
					Token:    token,
					Owner:    topicAddress(lg.Topics[1]),
					Spender:  topicAddress(lg.Topics[2]),
					Scope:    ScopeAll,
					Approved: approved,
				})
			}

		case topicPermit2Approval:
			if len(lg.Topics) == 4 && len(lg.Data) >= 32 {
				// Approval(address indexed owner, address indexed token,
				// address indexed spender, uint160 amount, uint48 expiration).
				approvals = append(approvals, ApprovalEvent{
					Standard: ApprovalPermit2,
					Token:    topicAddress(lg.Topics[2]),
					Owner:    topicAddress(lg.Topics[1]),
					Spender:  topicAddress(lg.Topics[3]),
					Amount:   new(big.Int).SetBytes(lg.Data[:32]),
					Scope:    ScopeToken,
				})
			}
		}
	}

	return transfers, approvals
}

func decodeTransferBatch(token string, lg Log) []TransferEvent {
	if len(lg.Topics) != 4 {
		return nil
	}
	values, _, err := abi.DecodeArgs(lg.Data, []abi.Param{
		{Name: "ids", Type: abi.TUint256Arr},
		{Name: "amounts", Type: abi.TUint256Arr},
	})
	if err != nil {
		return nil
	}
	ids := values["ids"].Array
	amounts := values["amounts"].Array
	if len(ids) != len(amounts) {
		return nil
	}
	from := topicAddress(lg.Topics[2])
	to := topicAddress(lg.Topics[3])
	out := make([]TransferEvent, 0, len(ids))
	for i := range ids {
		out = append(out, TransferEvent{
			AssetType: AssetERC1155,
			Token:     token,
			From:      from,
			To:        to,
			TokenID:   ids[i].Uint,
			Amount:    amounts[i].Uint,
		})
	}
	return out
}

func topicAddress(topic string) string {
	t := strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(t) < 40 {
		return "0x" + t
	}
	return "0x" + t[len(t)-40:]
}

func topicUint(topic string) *big.Int {
	t := strings.TrimPrefix(topic, "0x")
	b, err := hex.DecodeString(t)
	if err != nil {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(b)
}

// BuildAssetChanges projects TransferEvents onto wallet: each event where
// wallet participates as sender or receiver becomes one AssetChange with
// direction and counterparty relative to wallet (§4.5 step 8-9).
func BuildAssetChanges(wallet string, events []TransferEvent) []AssetChange {
	wallet = strings.ToLower(wallet)
	var out []AssetChange
	for _, e := range events {
		if strings.ToLower(e.From) == wallet {
			out = append(out, AssetChange{
				AssetType: e.AssetType, Address: e.Token, TokenID: e.TokenID, Amount: e.Amount,
				Direction: DirectionOut, Counterparty: e.To,
			})
		}
		if strings.ToLower(e.To) == wallet {
			out = append(out, AssetChange{
				AssetType: e.AssetType, Address: e.Token, TokenID: e.TokenID, Amount: e.Amount,
				Direction: DirectionIn, Counterparty: e.From,
			})
		}
	}
	return out
}

// FilterApprovalsByOwner implements §4.5 step 9: approvals.changes
// filtered to owner == from (case-insensitive).
func FilterApprovalsByOwner(owner string, events []ApprovalEvent) []ApprovalChange {
	owner = strings.ToLower(owner)
	var out []ApprovalChange
	for _, e := range events {
		if strings.ToLower(e.Owner) != owner {
			continue
		}
		out = append(out, ApprovalChange{
			Standard: e.Standard, Token: e.Token, Owner: e.Owner, Spender: e.Spender,
			Amount: e.Amount, PreviousAmount: e.PreviousAmount, TokenID: e.TokenID,
			Scope: e.Scope, Approved: e.Approved, PreviousApproved: e.PreviousApproved,
		})
	}
	return out
}
