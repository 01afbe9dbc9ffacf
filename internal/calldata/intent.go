package calldata

import (
	"fmt"
	"math/big"

	"github.com/assay-gate/assay/internal/abi"
)

// Intent renders a DecodedCall as the human-readable one-liner the scan
// response's "intent" field carries (§4.3: "a plain-English summary a
// non-technical wallet owner can read before signing").
func Intent(call DecodedCall) string {
	switch call.Source {
	case SourceEmpty:
		return "Send native currency with no contract call"
	case SourceUnknown:
		return fmt.Sprintf("Call an unrecognized function (selector %s)", call.Selector)
	}

	switch {
	case call.Name == "approve" && call.Standard == "erc20":
		return intentApprove(call)
	case call.Name == "transfer" && call.Standard == "erc20":
		return intentTransfer(call)
	case call.Name == "transferFrom" && call.Standard == "erc20":
		return fmt.Sprintf("Move tokens from %s to %s", addrOf(call, "from"), addrOf(call, "to"))
	case call.Name == "safeTransferFrom" && call.Standard == "erc721":
		return fmt.Sprintf("Transfer NFT #%s from %s to %s", uintOf(call, "tokenId"), addrOf(call, "from"), addrOf(call, "to"))
	case call.Name == "setApprovalForAll":
		return intentApprovalForAll(call)
	case call.Name == "permit" && call.Standard == "eip2612":
		return fmt.Sprintf("Sign a gasless approval letting %s spend up to %s tokens on your behalf", addrOf(call, "spender"), uintOf(call, "value"))
	case call.Name == "execute" && call.Standard == "universal-router":
		return fmt.Sprintf("Run %d routed action(s) through Uniswap's Universal Router", len(call.Inner))
	case call.Name == "execTransaction" || call.Standard == "safe-exec-legacy":
		return "Execute a transaction through a Safe multisig wallet"
	case call.Name == "multicall":
		return fmt.Sprintf("Run %d batched call(s) in a single transaction", len(call.Inner))
	case call.Name == "flashLoan":
		return "Borrow and repay within a single transaction (flash loan)"
	case call.Source == SourceLocalSelector:
		return fmt.Sprintf("Call %s", call.Signature)
	default:
		return fmt.Sprintf("Call %s", call.Name)
	}
}

func intentApprove(call DecodedCall) string {
	spender := addrOf(call, "spender")
	amount := uintOf(call, "amount")
	if isUnlimited(call, "amount") {
		return fmt.Sprintf("Grant %s unlimited, ongoing access to this token", spender)
	}
	return fmt.Sprintf("Grant %s access to spend up to %s of this token", spender, amount)
}

func intentTransfer(call DecodedCall) string {
	return fmt.Sprintf("Send %s of this token to %s", uintOf(call, "amount"), addrOf(call, "to"))
}

func intentApprovalForAll(call DecodedCall) string {
	operator := addrOf(call, "operator")
	approved := true
	if v, ok := call.Args["approved"]; ok {
		approved = v.Bool
	}
	if !approved {
		return fmt.Sprintf("Revoke %s's blanket access to this NFT collection", operator)
	}
	return fmt.Sprintf("Grant %s blanket access to every NFT you own in this collection", operator)
}

func addrOf(call DecodedCall, name string) string {
	if v, ok := call.Args[name]; ok && v.Kind == abi.KindAddress {
		return v.Address
	}
	return "an unknown address"
}

func uintOf(call DecodedCall, name string) string {
	if v, ok := call.Args[name]; ok && v.Kind == abi.KindUint && v.Uint != nil {
		return v.Uint.String()
	}
	return "0"
}

func isUnlimited(call DecodedCall, name string) bool {
	v, ok := call.Args[name]
	if !ok || v.Kind != abi.KindUint || v.Uint == nil {
		return false
	}
	// §4.3: treat anything within half of max-uint256 as "effectively
	// unlimited" the way wallets commonly do, not just the exact max.
	half := new(big.Int).Rsh(abi.MaxUint256, 1)
	return v.Uint.Cmp(half) >= 0
}
