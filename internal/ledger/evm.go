package ledger

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

//go:embed assessment.abi.json
var assessmentABI string

const (
	// EIP-1193 "User Rejected Request".
	codeUserRejected = 4001

	defaultPollInterval = time.Second

	methodBalance  = "getBalance"
	methodDeposit  = "deposit"
	methodWithdraw = "withdraw"

	errInsufficientBalance = "InsufficientBalance"
)

// EVMConfig describes the deployed ledger contract.
type EVMConfig struct {
	// Contract is the hex address of the deployed contract.
	Contract string
	// ABI is the contract interface descriptor as JSON. Empty selects the
	// embedded Assessment ATM interface.
	ABI string
	// PollInterval is the receipt polling period while awaiting confirmation.
	PollInterval time.Duration
	// Signer is the wallet endpoint that receives eth_sendTransaction. Nil
	// sends mutations over the read connection.
	Signer *rpc.Client
}

// EVMClient talks to the ledger contract over Ethereum JSON-RPC. Reads and
// receipt polling use the ledger connection; mutations are handed to the
// wallet endpoint through eth_sendTransaction so that the wallet signs them.
type EVMClient struct {
	signer   *rpc.Client
	eth      *ethclient.Client
	contract common.Address
	abi      abi.ABI
	poll     time.Duration
}

// NewEVMClient binds the contract described by cfg to an RPC connection.
func NewEVMClient(client *rpc.Client, cfg EVMConfig) (*EVMClient, error) {
	if client == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Contract)
	}
	descriptor := cfg.ABI
	if strings.TrimSpace(descriptor) == "" {
		descriptor = assessmentABI
	}
	parsed, err := abi.JSON(strings.NewReader(descriptor))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	for _, m := range []string{methodBalance, methodDeposit, methodWithdraw} {
		if _, ok := parsed.Methods[m]; !ok {
			return nil, fmt.Errorf("contract abi lacks method %s", m)
		}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	signer := cfg.Signer
	if signer == nil {
		signer = client
	}
	return &EVMClient{
		signer:   signer,
		eth:      ethclient.NewClient(client),
		contract: common.HexToAddress(cfg.Contract),
		abi:      parsed,
		poll:     poll,
	}, nil
}

// Balance reads getBalance() on behalf of account.
func (c *EVMClient) Balance(ctx context.Context, account string) (int64, error) {
	from, err := address(account)
	if err != nil {
		return 0, err
	}
	data, err := c.abi.Pack(methodBalance)
	if err != nil {
		return 0, fmt.Errorf("pack %s: %w", methodBalance, err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{From: from, To: &c.contract, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", methodBalance, c.classify(err))
	}
	values, err := c.abi.Unpack(methodBalance, out)
	if err != nil {
		return 0, fmt.Errorf("unpack %s: %w", methodBalance, err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("unpack %s: expected 1 value, got %d", methodBalance, len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok || v.Sign() < 0 || !v.IsInt64() {
		return 0, fmt.Errorf("%s returned out of range value %v", methodBalance, values[0])
	}
	return v.Int64(), nil
}

// Deposit submits deposit(amount).
func (c *EVMClient) Deposit(ctx context.Context, account string, amount int64) (Tx, error) {
	return c.transact(ctx, account, methodDeposit, amount)
}

// Withdraw submits withdraw(amount).
func (c *EVMClient) Withdraw(ctx context.Context, account string, amount int64) (Tx, error) {
	return c.transact(ctx, account, methodWithdraw, amount)
}

type sendTxArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

func (c *EVMClient) transact(ctx context.Context, account, method string, amount int64) (Tx, error) {
	if err := validate(account, amount); err != nil {
		return nil, err
	}
	from, err := address(account)
	if err != nil {
		return nil, err
	}
	data, err := c.abi.Pack(method, big.NewInt(amount))
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var hash common.Hash
	args := sendTxArgs{From: from, To: c.contract, Data: data}
	if err := c.signer.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, c.classify(err))
	}
	return &evmTx{
		client: c,
		hash:   hash,
		call:   ethereum.CallMsg{From: from, To: &c.contract, Data: data},
	}, nil
}

type evmTx struct {
	client *EVMClient
	hash   common.Hash
	call   ethereum.CallMsg
}

func (t *evmTx) Hash() string { return t.hash.Hex() }

// Wait polls for the receipt. A failed receipt is replayed with eth_call at
// its block to recover the revert reason.
func (t *evmTx) Wait(ctx context.Context) (Receipt, error) {
	ticker := time.NewTicker(t.client.poll)
	defer ticker.Stop()

	for {
		receipt, err := t.client.eth.TransactionReceipt(ctx, t.hash)
		if err == nil {
			var block uint64
			if receipt.BlockNumber != nil {
				block = receipt.BlockNumber.Uint64()
			}
			if receipt.Status == types.ReceiptStatusSuccessful {
				return Receipt{TxHash: t.hash.Hex(), Block: block}, nil
			}
			return Receipt{}, t.client.replayRevert(ctx, t.call, receipt.BlockNumber)
		}
		if !errors.Is(err, ethereum.NotFound) {
			return Receipt{}, fmt.Errorf("receipt %s: %w", t.hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *EVMClient) replayRevert(ctx context.Context, call ethereum.CallMsg, block *big.Int) error {
	_, err := c.eth.CallContract(ctx, call, block)
	if err == nil {
		return &RevertError{}
	}
	classified := c.classify(err)
	var rev *RevertError
	if errors.As(classified, &rev) {
		return rev
	}
	return &RevertError{Reason: err.Error()}
}

// classify maps JSON-RPC failures onto the ledger error taxonomy.
func (c *EVMClient) classify(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected {
		return fmt.Errorf("%w: %s", ErrUserRejectedSignature, rpcErr.Error())
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if rev := c.decodeRevert(dataErr.ErrorData()); rev != nil {
			return rev
		}
	}
	if msg := err.Error(); strings.Contains(msg, "execution reverted") {
		reason := strings.TrimSpace(strings.TrimPrefix(msg, "execution reverted"))
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		return &RevertError{Reason: reason, Insufficient: isInsufficient(reason)}
	}
	return err
}

func (c *EVMClient) decodeRevert(data interface{}) *RevertError {
	hexData, ok := data.(string)
	if !ok {
		return nil
	}
	raw, err := hexutil.Decode(hexData)
	if err != nil || len(raw) < 4 {
		return nil
	}
	if custom, ok := c.abi.Errors[errInsufficientBalance]; ok && bytes.Equal(raw[:4], custom.ID[:4]) {
		reason := errInsufficientBalance
		if values, err := custom.Inputs.Unpack(raw[4:]); err == nil && len(values) == 2 {
			reason = fmt.Sprintf("%s(balance=%v, withdrawAmount=%v)", errInsufficientBalance, values[0], values[1])
		}
		return &RevertError{Reason: reason, Insufficient: true}
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return &RevertError{Reason: hexData}
	}
	return &RevertError{Reason: reason, Insufficient: isInsufficient(reason)}
}

func isInsufficient(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "insufficient")
}

func address(account string) (common.Address, error) {
	if account == "" {
		return common.Address{}, ErrNotConnected
	}
	if !common.IsHexAddress(account) {
		return common.Address{}, fmt.Errorf("invalid account address %q", account)
	}
	return common.HexToAddress(account), nil
}
