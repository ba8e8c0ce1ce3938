package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ERC-20 balanceOf(address) selector.
const balanceOfSelector = "0x70a08231"

// Keccak256("Transfer(address,address,uint256)").
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// HTTPClient implements Client over a Base JSON-RPC node and the x402
// facilitator HTTP API.
type HTTPClient struct {
	rpcURL           string
	facilitatorBase  string
	facilitatorToken string
	usdcContract     common.Address
	confirmations    int64
	httpClient       *http.Client
}

func NewHTTPClient(rpcURL, facilitatorBase, facilitatorToken, usdcContract string, confirmations int64) *HTTPClient {
	return &HTTPClient{
		rpcURL:           rpcURL,
		facilitatorBase:  strings.TrimRight(facilitatorBase, "/"),
		facilitatorToken: facilitatorToken,
		usdcContract:     common.HexToAddress(usdcContract),
		confirmations:    confirmations,
		httpClient:       &http.Client{Timeout: 15 * time.Second},
	}
}

// BalanceCents reads balanceOf(address) on the USDC contract via eth_call.
func (c *HTTPClient) BalanceCents(ctx context.Context, address string) (int64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("invalid wallet address %q", address)
	}

	arg := common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)
	data := balanceOfSelector + common.Bytes2Hex(arg)
	call := map[string]string{
		"to":   c.usdcContract.Hex(),
		"data": data,
	}

	var result string
	if err := c.rpcCall(ctx, "eth_call", []interface{}{call, "latest"}, &result); err != nil {
		return 0, err
	}

	wei, err := hexutil.DecodeBig(normalizeHexQuantity(result))
	if err != nil {
		return 0, fmt.Errorf("invalid balance payload %q: %w", result, err)
	}

	return WeiToCents(wei), nil
}

type facilitatorRequest struct {
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	Recipient string            `json:"recipient"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type facilitatorResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transaction_hash"`
	Error           string `json:"error"`
}

// SubmitPayment asks the facilitator to execute the transfer. The call moves
// real value and is never retried here.
func (c *HTTPClient) SubmitPayment(ctx context.Context, order PaymentOrder) (*Receipt, error) {
	if !common.IsHexAddress(order.Recipient) {
		return nil, fmt.Errorf("invalid recipient address %q", order.Recipient)
	}

	body, err := json.Marshal(facilitatorRequest{
		Amount:    CentsToWei(order.AmountCents).String(),
		Currency:  "USDC",
		Recipient: common.HexToAddress(order.Recipient).Hex(),
		Metadata:  order.Metadata,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.facilitatorBase+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.facilitatorToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.facilitatorToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facilitator http %d", resp.StatusCode)
	}

	var out facilitatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	if !out.Success || out.TransactionHash == "" {
		reason := out.Error
		if reason == "" {
			reason = "payment declined"
		}
		return nil, fmt.Errorf("facilitator: %s", reason)
	}

	return &Receipt{TxHash: out.TransactionHash}, nil
}

type rpcReceipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
	Logs        []struct {
		Address string   `json:"address"`
		Topics  []string `json:"topics"`
		Data    string   `json:"data"`
	} `json:"logs"`
}

// VerifyPayment checks the receipt of txHash: success status, confirmation
// depth, and a USDC Transfer log carrying the expected amount to the
// expected recipient.
func (c *HTTPClient) VerifyPayment(ctx context.Context, txHash string, amountCents int64, recipient string) (bool, error) {
	var receipt *rpcReceipt
	if err := c.rpcCall(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &receipt); err != nil {
		return false, err
	}
	if receipt == nil || receipt.BlockNumber == "" {
		// Not mined yet.
		return false, nil
	}
	if receipt.Status != "0x1" {
		return false, fmt.Errorf("transaction %s reverted: %w", txHash, ErrPaymentInvalid)
	}

	var headHex string
	if err := c.rpcCall(ctx, "eth_blockNumber", []interface{}{}, &headHex); err != nil {
		return false, err
	}
	head, err := hexutil.DecodeUint64(headHex)
	if err != nil {
		return false, fmt.Errorf("invalid head block %q: %w", headHex, err)
	}
	mined, err := hexutil.DecodeUint64(receipt.BlockNumber)
	if err != nil {
		return false, fmt.Errorf("invalid receipt block %q: %w", receipt.BlockNumber, err)
	}
	if int64(head-mined)+1 < c.confirmations {
		return false, nil
	}

	want := CentsToWei(amountCents)
	wantRecipient := common.HexToAddress(recipient)
	for _, l := range receipt.Logs {
		if common.HexToAddress(l.Address) != c.usdcContract {
			continue
		}
		if len(l.Topics) < 3 || common.HexToHash(l.Topics[0]) != transferTopic {
			continue
		}
		to := common.BytesToAddress(common.HexToHash(l.Topics[2]).Bytes()[12:])
		if to != wantRecipient {
			continue
		}
		value := new(big.Int).SetBytes(common.FromHex(l.Data))
		if value.Cmp(want) == 0 {
			return true, nil
		}
	}

	return false, fmt.Errorf("transaction %s carries no matching USDC transfer: %w", txHash, ErrPaymentInvalid)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) rpcCall(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc http %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if out.Error != nil {
		return fmt.Errorf("rpc %s: %s (%d)", method, out.Error.Message, out.Error.Code)
	}

	return json.Unmarshal(out.Result, result)
}

// normalizeHexQuantity strips leading zeros so hexutil accepts eth_call
// return data as a quantity.
func normalizeHexQuantity(s string) string {
	v := strings.TrimPrefix(s, "0x")
	v = strings.TrimLeft(v, "0")
	if v == "" {
		v = "0"
	}
	return "0x" + v
}
