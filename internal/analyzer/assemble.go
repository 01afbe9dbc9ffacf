package analyzer

import (
	"strings"

	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/providers"
)

// assemble implements §4.4 steps 6-7: build ContractInfo and the ordered
// findings list from the fixed-order fan-out results.
func (a *Analyzer) assemble(address string, c chain.Chain, proxyInfo providers.ProxyInfo, steps mainFanOutResult, implSteps implFanOutResult) (ContractInfo, []finding.Finding) {
	info := ContractInfo{Address: address, IsContract: true, IsProxy: proxyInfo.IsProxy, ProxyType: proxyInfo.ProxyType, Implementation: proxyInfo.Implementation, Beacon: proxyInfo.Beacon}

	var findings []finding.Finding

	verification, verificationOk := steps.sourcify.OkValue()
	etherscan, etherscanOk := steps.etherscan.OkValue()

	verified := false
	verificationKnown := false
	anyKnownUnverified := false

	if verificationOk {
		verificationKnown = verification.VerificationKnown
		if verification.Verified {
			verified = true
			info.Name = verification.Name
			info.ABI = verification.ABI
			info.Source = verification.Source
		} else if verification.VerificationKnown {
			anyKnownUnverified = true
		}
	}
	if etherscanOk && etherscan != nil {
		if etherscan.Verified {
			verified = true
			verificationKnown = true
			if info.Name == "" {
				info.Name = etherscan.Name
			}
			if info.ABI == nil {
				info.ABI = etherscan.ABI
			}
			if info.Source == "" {
				info.Source = etherscan.Source
			}
		} else {
			anyKnownUnverified = true
			verificationKnown = true
		}
		info.AgeDays = etherscan.AgeDays
		info.TxCount = etherscan.TxCount
		info.Creator = etherscan.Creator
	}

	info.Verified = verified
	info.VerificationKnown = verificationKnown

	// Step 6: VERIFIED / UNVERIFIED / UNKNOWN_SECURITY.
	switch {
	case verified:
		findings = append(findings, finding.Finding{Level: finding.LevelSafe, Code: "VERIFIED", Message: "contract source code is verified"})
	case anyKnownUnverified:
		findings = append(findings, finding.Finding{Level: finding.LevelDanger, Code: "UNVERIFIED", Message: "contract source code is not verified"})
	default:
		findings = append(findings, finding.Finding{Level: finding.LevelInfo, Code: "UNKNOWN_SECURITY", Message: "verification status could not be determined"})
	}

	// KNOWN_PROTOCOL
	protocolMatch, protocolOk := steps.protocol.OkValue()
	if protocolOk && protocolMatch.Matched {
		info.ProtocolLabel = protocolMatch.Label
		findings = append(findings, finding.Finding{Level: finding.LevelSafe, Code: "KNOWN_PROTOCOL", Message: "address matches a known protocol: " + protocolMatch.Label})
	}

	// KNOWN_PHISHING
	labels, labelsOk := steps.labels.OkValue()
	if labelsOk {
		if _, flagged := labels[address]; flagged {
			findings = append(findings, finding.Finding{Level: finding.LevelDanger, Code: "KNOWN_PHISHING", Message: "address appears on a known phishing/scam/hack list"})
		}
	}
	if containsPhishingWord(info.Name) || containsPhishingWord(info.Creator) {
		findings = append(findings, finding.Finding{Level: finding.LevelDanger, Code: "KNOWN_PHISHING", Message: "contract or creator label contains a phishing/scam marker"})
	}

	// PROXY / UPGRADEABLE
	if proxyInfo.IsProxy {
		findings = append(findings, finding.Finding{Level: finding.LevelInfo, Code: "PROXY", Message: "contract is a proxy (" + string(proxyInfo.ProxyType) + ")"})
		findings = append(findings, finding.Finding{Level: finding.LevelWarning, Code: "UPGRADEABLE", Message: "proxy implementation may change without notice"})
	}

	// NEW_CONTRACT / LOW_ACTIVITY
	if etherscanOk && etherscan != nil {
		if etherscan.AgeDays < 7 {
			findings = append(findings, finding.Finding{Level: finding.LevelWarning, Code: "NEW_CONTRACT", Message: "contract was created fewer than 7 days ago", Details: map[string]any{"ageDays": etherscan.AgeDays}})
		}
		if etherscan.TxCount < 100 {
			findings = append(findings, finding.Finding{Level: finding.LevelInfo, Code: "LOW_ACTIVITY", Message: "contract has fewer than 100 recent transactions", Details: map[string]any{"txCount": etherscan.TxCount}})
		}
	}

	// Token-security findings.
	tokenSec, tokenSecOk := steps.tokenSec.OkValue()
	if tokenSecOk {
		findings = append(findings, tokenSecurityFindings(tokenSec)...)
	}

	// §4.4 step 5 implementation follow-up enriches the display name but
	// does not add its own VERIFIED/UNVERIFIED finding — only the primary
	// contract's verification status governs the recommendation.
	if implVerification, ok := implSteps.sourcifyImpl.OkValue(); ok && implVerification.Verified {
		info.ImplementationName = implVerification.Name
	}
	if implProtocol, ok := implSteps.protocolImpl.OkValue(); ok && implProtocol.Matched && info.ProtocolLabel == "" {
		info.ProtocolLabel = implProtocol.Label
	}

	// Step 7: confidence.
	switch {
	case !info.VerificationKnown:
		info.Confidence = ConfidenceMedium
	case !info.Verified:
		info.Confidence = ConfidenceLow
	case a.HasEtherscanKey:
		info.Confidence = ConfidenceHigh
	default:
		info.Confidence = ConfidenceMedium
	}

	return info, findings
}

func tokenSecurityFindings(t providers.TokenSecurity) []finding.Finding {
	var out []finding.Finding
	if t.IsHoneypot {
		out = append(out, finding.Finding{Level: finding.LevelDanger, Code: "HONEYPOT", Message: "token security scan flagged this as a honeypot"})
	}
	if t.IsMintable {
		out = append(out, finding.Finding{Level: finding.LevelDanger, Code: "HIDDEN_MINT", Message: "token owner can mint new supply"})
	}
	if t.Selfdestruct {
		out = append(out, finding.Finding{Level: finding.LevelDanger, Code: "SELFDESTRUCT", Message: "contract contains a selfdestruct path"})
	}
	if t.OwnerCanChangeBalance {
		out = append(out, finding.Finding{Level: finding.LevelDanger, Code: "OWNER_DRAIN", Message: "token owner can directly change holder balances"})
	}
	if t.IsBlacklisted {
		out = append(out, finding.Finding{Level: finding.LevelWarning, Code: "BLACKLIST", Message: "token supports blacklisting addresses from transferring"})
	}
	maxTax := t.BuyTax
	if t.SellTax > maxTax {
		maxTax = t.SellTax
	}
	if maxTax > 0.10 {
		out = append(out, finding.Finding{Level: finding.LevelWarning, Code: "HIGH_TAX", Message: "token applies a high buy/sell tax", Details: map[string]any{"buyTax": t.BuyTax, "sellTax": t.SellTax}})
	}
	return out
}

func containsPhishingWord(s string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, "phishing") || strings.Contains(lower, "scam") || strings.Contains(lower, "phish")
}

// displayName implements §4.4 step 9's name resolution.
func displayName(info ContractInfo) string {
	if info.IsProxy {
		switch {
		case info.ProtocolLabel != "" && info.ImplementationName != "":
			if strings.Contains(strings.ToLower(info.ImplementationName), strings.ToLower(info.ProtocolLabel)) {
				return info.ImplementationName
			}
			return info.ProtocolLabel + " " + info.ImplementationName
		case info.ProtocolLabel != "":
			return info.ProtocolLabel
		case info.ImplementationName != "":
			return info.ImplementationName
		}
	}
	switch {
	case info.Name != "":
		return info.Name
	case info.ProtocolLabel != "":
		return info.ProtocolLabel
	default:
		return info.Address
	}
}
