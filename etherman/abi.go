package etherman

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashedTimelockABI is the interface of the native-asset HTLC contract.
// withdraw may be called by anyone and always pays the receiver; refund is
// restricted to the sender.
const HashedTimelockABI = `[
{"type":"function","name":"newContract","stateMutability":"payable","inputs":[{"name":"_receiver","type":"address"},{"name":"_hashlock","type":"bytes32"},{"name":"_timelock","type":"uint256"}],"outputs":[{"name":"contractId","type":"bytes32"}]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"_contractId","type":"bytes32"},{"name":"_preimage","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[{"name":"_contractId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getContract","stateMutability":"view","inputs":[{"name":"_contractId","type":"bytes32"}],"outputs":[{"name":"sender","type":"address"},{"name":"receiver","type":"address"},{"name":"amount","type":"uint256"},{"name":"hashlock","type":"bytes32"},{"name":"timelock","type":"uint256"},{"name":"withdrawn","type":"bool"},{"name":"refunded","type":"bool"},{"name":"preimage","type":"bytes32"}]},
{"type":"event","name":"LogHTLCNew","anonymous":false,"inputs":[{"name":"contractId","type":"bytes32","indexed":true},{"name":"sender","type":"address","indexed":true},{"name":"receiver","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"hashlock","type":"bytes32","indexed":false},{"name":"timelock","type":"uint256","indexed":false}]},
{"type":"event","name":"LogHTLCWithdraw","anonymous":false,"inputs":[{"name":"contractId","type":"bytes32","indexed":true}]},
{"type":"event","name":"LogHTLCRefund","anonymous":false,"inputs":[{"name":"contractId","type":"bytes32","indexed":true}]}
]`

// HashedTimelockERC20ABI is the token variant. The HTLC pulls the amount with
// transferFrom, so the sender approves it first.
const HashedTimelockERC20ABI = `[
{"type":"function","name":"newContract","stateMutability":"nonpayable","inputs":[{"name":"_receiver","type":"address"},{"name":"_hashlock","type":"bytes32"},{"name":"_timelock","type":"uint256"},{"name":"_tokenContract","type":"address"},{"name":"_amount","type":"uint256"}],"outputs":[{"name":"contractId","type":"bytes32"}]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"_contractId","type":"bytes32"},{"name":"_preimage","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[{"name":"_contractId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getContract","stateMutability":"view","inputs":[{"name":"_contractId","type":"bytes32"}],"outputs":[{"name":"sender","type":"address"},{"name":"receiver","type":"address"},{"name":"tokenContract","type":"address"},{"name":"amount","type":"uint256"},{"name":"hashlock","type":"bytes32"},{"name":"timelock","type":"uint256"},{"name":"withdrawn","type":"bool"},{"name":"refunded","type":"bool"},{"name":"preimage","type":"bytes32"}]},
{"type":"event","name":"HTLCERC20New","anonymous":false,"inputs":[{"name":"contractId","type":"bytes32","indexed":true},{"name":"sender","type":"address","indexed":true},{"name":"receiver","type":"address","indexed":true},{"name":"tokenContract","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false},{"name":"hashlock","type":"bytes32","indexed":false},{"name":"timelock","type":"uint256","indexed":false}]},
{"type":"event","name":"HTLCERC20Withdraw","anonymous":false,"inputs":[{"name":"contractId","type":"bytes32","indexed":true}]},
{"type":"event","name":"HTLCERC20Refund","anonymous":false,"inputs":[{"name":"contractId","type":"bytes32","indexed":true}]}
]`

const ERC20ApproveABI = `[
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	// Events
	LogHTLCNewSignatureHash   = crypto.Keccak256Hash([]byte("LogHTLCNew(bytes32,address,address,uint256,bytes32,uint256)"))
	HTLCERC20NewSignatureHash = crypto.Keccak256Hash([]byte("HTLCERC20New(bytes32,address,address,address,uint256,bytes32,uint256)"))
)

var (
	htlcABI      = mustParseABI(HashedTimelockABI)
	erc20HTLCABI = mustParseABI(HashedTimelockERC20ABI)
	erc20ABI     = mustParseABI(ERC20ApproveABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
