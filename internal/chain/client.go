package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/blues/fundgate/internal/config"
	"github.com/blues/fundgate/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// NativeDecimals 原生代币精度
const NativeDecimals = 18

// transferTopic ERC20 Transfer(address,address,uint256) 事件签名
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Backend 客户端依赖的链接口，*ethclient.Client 实现了它
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TxStatus 交易状态
type TxStatus string

const (
	TxPending    TxStatus = "pending"    // 未上链
	TxConfirming TxStatus = "confirming" // 已上链，确认数不足
	TxConfirmed  TxStatus = "confirmed"
	TxFailed     TxStatus = "failed"
)

// Client 链客户端
type Client struct {
	backend        Backend
	chainId        *big.Int
	privateKey     *ecdsa.PrivateKey
	confirmations  uint64
	stableToken    common.Address
	stableDecimals int32
}

var supportedTypes = []string{"ethereum", "polygon", "bsc", "arbitrum", "optimism"}

// Dial 连接链节点并检查连通性
func Dial(ctx context.Context, cfg config.ChainConfig) (*Client, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}
	if !isSupported(cfg.ChainType) {
		return nil, fmt.Errorf("unsupported chain type %s, supported types: %s", cfg.ChainType, strings.Join(supportedTypes, ", "))
	}

	logger.Info("Creating %s client connection (RPC: %s)", cfg.ChainType, cfg.RpcUrl)
	ec, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s client: %w", cfg.ChainType, err)
	}
	if _, err := ec.BlockNumber(ctx); err != nil {
		ec.Close()
		return nil, fmt.Errorf("client connection test failed (%s): %w", cfg.ChainType, err)
	}

	client, err := NewClient(ec, cfg)
	if err != nil {
		ec.Close()
		return nil, err
	}
	logger.Info("Successfully created %s client", cfg.ChainType)
	return client, nil
}

// NewClient 基于已有 backend 创建客户端
func NewClient(backend Backend, cfg config.ChainConfig) (*Client, error) {
	c := &Client{
		backend:        backend,
		chainId:        big.NewInt(cfg.ChainId),
		confirmations:  uint64(cfg.Confirmations),
		stableDecimals: cfg.StableDecimals,
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		c.privateKey = key
	}
	if cfg.StableToken != "" {
		if !common.IsHexAddress(cfg.StableToken) {
			return nil, fmt.Errorf("invalid stable token address %s", cfg.StableToken)
		}
		c.stableToken = common.HexToAddress(cfg.StableToken)
	}
	return c, nil
}

func isSupported(chainType string) bool {
	for _, t := range supportedTypes {
		if t == chainType {
			return true
		}
	}
	return false
}

// CanonicalAddress 返回 EIP-55 校验和格式的地址
func CanonicalAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", mismatch(CodeInvalidAddress, "invalid wallet address", "0x-prefixed 20 byte hex", addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

// ErrInvalidTxHash 交易哈希格式错误
var ErrInvalidTxHash = errors.New("invalid transaction hash")

// CanonicalTxHash 校验交易哈希并统一为小写 0x 形式，大小写不同的同一哈希得到相同结果
func CanonicalTxHash(hash string) (string, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(hash))
	if err != nil || len(raw) != common.HashLength {
		return "", ErrInvalidTxHash
	}
	return common.BytesToHash(raw).Hex(), nil
}

// SameAddress 不区分大小写比较两个地址
func SameAddress(a, b string) bool {
	return common.IsHexAddress(a) && common.IsHexAddress(b) && common.HexToAddress(a) == common.HexToAddress(b)
}

// ToBaseUnits 把金额换算为最小单位
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).BigInt()
}

// Decimals 币种精度
func (c *Client) Decimals(stable bool) int32 {
	if stable && c.stableToken != (common.Address{}) {
		return c.stableDecimals
	}
	return NativeDecimals
}

// Account 平台签名账户，只读模式返回空
func (c *Client) Account() (common.Address, bool) {
	if c.privateKey == nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(c.privateKey.PublicKey), true
}

// SubmitPayment 用平台账户向 to 转账 amount（wei），返回交易哈希
func (c *Client) SubmitPayment(ctx context.Context, to string, amount *big.Int) (string, error) {
	if c.privateKey == nil {
		return "", newPaymentError(CodeSignatureRejected, "no signing key configured")
	}
	recipient, err := CanonicalAddress(to)
	if err != nil {
		return "", err
	}
	from, _ := c.Account()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      21000,
		To:       ptr(common.HexToAddress(recipient)),
		Value:    amount,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainId), c.privateKey)
	if err != nil {
		return "", &PaymentError{Code: CodeSignatureRejected, Message: "failed to sign transaction", Err: err}
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
			return "", &PaymentError{Code: CodeInsufficientFunds, Message: "insufficient funds for payment", Err: err}
		}
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	logger.Info("Submitted payment %s -> %s amount %s", from.Hex(), recipient, amount.String())
	return signed.Hash().Hex(), nil
}

// TransactionStatus 查询交易状态和确认数
func (c *Client) TransactionStatus(ctx context.Context, txHash string) (TxStatus, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return TxPending, nil
		}
		return "", fmt.Errorf("failed to get receipt %s: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return TxFailed, nil
	}

	latest, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get latest block: %w", err)
	}
	if latest < receipt.BlockNumber.Uint64()+c.confirmations {
		return TxConfirming, nil
	}
	return TxConfirmed, nil
}

// Expectation 期望的支付内容
type Expectation struct {
	From   string
	To     string
	Amount decimal.Decimal
	Stable bool // 稳定币走 ERC20 Transfer
}

// Transfer 链上实际转账
type Transfer struct {
	TxHash string
	From   string
	To     string
	Value  *big.Int
}

// VerifyPayment 校验交易的付款人、收款人和金额。金额不少于期望值即可。
func (c *Client) VerifyPayment(ctx context.Context, txHash string, want Expectation) (*Transfer, error) {
	hash := common.HexToHash(txHash)
	tx, _, err := c.backend.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", txHash, err)
	}

	var transfer *Transfer
	if want.Stable && c.stableToken != (common.Address{}) {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to get receipt %s: %w", txHash, err)
		}
		transfer, err = c.tokenTransfer(receipt)
		if err != nil {
			return nil, err
		}
	} else {
		transfer, err = nativeTransfer(tx)
		if err != nil {
			return nil, err
		}
	}
	transfer.TxHash = hash.Hex()

	if !SameAddress(transfer.From, want.From) {
		return transfer, mismatch(CodeAddressMismatch, "payment was sent from a different wallet than the one on record", want.From, transfer.From)
	}
	if !SameAddress(transfer.To, want.To) {
		return transfer, mismatch(CodeRecipientMismatch, "payment recipient does not match", want.To, transfer.To)
	}

	expected := ToBaseUnits(want.Amount, c.Decimals(want.Stable))
	if transfer.Value.Cmp(expected) < 0 {
		return transfer, mismatch(CodeAmountMismatch, "payment amount is lower than required", expected.String(), transfer.Value.String())
	}
	return transfer, nil
}

func nativeTransfer(tx *types.Transaction) (*Transfer, error) {
	if tx.To() == nil {
		return nil, newPaymentError(CodeRecipientMismatch, "contract creation is not a payment")
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, &PaymentError{Code: CodeSignatureRejected, Message: "cannot recover payment sender", Err: err}
	}
	return &Transfer{From: from.Hex(), To: tx.To().Hex(), Value: tx.Value()}, nil
}

func (c *Client) tokenTransfer(receipt *types.Receipt) (*Transfer, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, newPaymentError(CodeTxFailed, "token transfer reverted")
	}
	for _, l := range receipt.Logs {
		if l.Address != c.stableToken || len(l.Topics) < 3 || l.Topics[0] != transferTopic {
			continue
		}
		return &Transfer{
			From:  common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
			To:    common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
			Value: new(big.Int).SetBytes(l.Data),
		}, nil
	}
	return nil, newPaymentError(CodeRecipientMismatch, "no stable token transfer found in transaction")
}

func ptr[T any](v T) *T {
	return &v
}
