package forknode

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// hardhat: "VM Exception while processing transaction: reverted with reason string 'X'"
var hardhatReason = regexp.MustCompile(`reverted with reason string '(.*)'`)

// revertMessages are the reasonless revert messages of geth, anvil and
// hardhat. Other errors that mention reverting are transport or node
// faults, not rejections.
var revertMessages = []string{
	"execution reverted",
	"EvmError: Revert",
	"VM Exception while processing transaction: revert",
	"Transaction reverted",
}

// revertReason extracts a revert reason from a JSON-RPC error. It prefers
// the ABI-encoded Error(string) payload and falls back to the message
// formats of hardhat, anvil and geth.
func revertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}

	msg := err.Error()
	if m := hardhatReason.FindStringSubmatch(msg); m != nil {
		return m[1], true
	}
	if _, rest, ok := strings.Cut(msg, "execution reverted: "); ok {
		return rest, true
	}
	for _, prefix := range revertMessages {
		if strings.Contains(msg, prefix) {
			return "transaction reverted", true
		}
	}
	return "", false
}
