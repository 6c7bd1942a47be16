package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/txnbuild"

	"github.com/microgig/microgig/pkg/cerr"
	"github.com/microgig/microgig/wallet"
)

// Signer hands an unsigned transaction envelope to the external wallet.
// A user refusal is reported as wallet.ErrDeclined.
type Signer interface {
	SignTransaction(ctx context.Context, envelope, networkPassphrase string) (string, error)
}

type Config struct {
	// NetworkPassphrase identifies the network transactions are signed for.
	NetworkPassphrase string
	// BaseFee is the fixed per-operation fee in stroops. No estimation.
	BaseFee int64
	// TxTimeoutSeconds bounds the validity window of built transactions.
	TxTimeoutSeconds int64
	// ReserveMargin is the native-unit balance kept back beyond the
	// transfer amount to cover fees and minimum balance rules.
	ReserveMargin string
	// FriendbotURL is the test-network faucet; empty disables funding.
	FriendbotURL string
}

// Client is a thin sequential wrapper over a horizon-style API and the
// wallet signer. It performs no retries: the first failing step aborts
// the rest of a payment.
type Client struct {
	horizon      horizonclient.ClientInterface
	signer       Signer
	cfg          Config
	reserve      int64 // ReserveMargin in stroops
	friendbotURL string
	httpClient   *http.Client
}

func New(horizon horizonclient.ClientInterface, signer Signer, cfg Config) (*Client, error) {
	if cfg.BaseFee <= 0 {
		cfg.BaseFee = txnbuild.MinBaseFee
	}
	if cfg.TxTimeoutSeconds <= 0 {
		cfg.TxTimeoutSeconds = 60
	}
	reserve := int64(0)
	if cfg.ReserveMargin != "" {
		parsed, err := amount.ParseInt64(cfg.ReserveMargin)
		if err != nil {
			return nil, fmt.Errorf("invalid reserve margin %q: %w", cfg.ReserveMargin, err)
		}
		reserve = parsed
	}
	return &Client{
		horizon:      horizon,
		signer:       signer,
		cfg:          cfg,
		reserve:      reserve,
		friendbotURL: cfg.FriendbotURL,
		httpClient:   http.DefaultClient,
	}, nil
}

// Balance returns the native-asset balance of address as a decimal string.
// A missing account or a failed lookup yields "0"; errors never cross this
// boundary.
func (c *Client) Balance(ctx context.Context, address string) string {
	account, err := c.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if !horizonclient.IsNotFoundError(err) {
			slog.DebugContext(ctx, "account lookup failed", "address", address, "error", err)
		}
		return "0"
	}
	balance, err := account.GetNativeBalance()
	if err != nil || balance == "" {
		return "0"
	}
	return balance
}

// SendPayment transfers amt (decimal string, native units) from source to
// destination: account lookup, balance check, build, sign, submit — in
// that order, aborting on the first failure.
func (c *Client) SendPayment(ctx context.Context, destination, amt, source string) (string, error) {
	stroops, err := amount.ParseInt64(amt)
	if err != nil {
		return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid payment amount %q", amt), err)
	}

	account, err := c.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: source})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return "", cerr.NewError(cerr.Unavailable, "source account not found, fund it first", err)
		}
		return "", cerr.NewError(cerr.Internal, "account lookup failed", err)
	}

	native, _ := account.GetNativeBalance()
	available, err := amount.ParseInt64(native)
	if err != nil {
		available = 0
	}
	if available < stroops+c.reserve {
		return "", cerr.NewError(cerr.FailedPrecondition, "insufficient balance to cover the payment and fees", nil)
	}

	payment := amount.StringFromInt64(stroops)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		BaseFee:              c.cfg.BaseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(c.cfg.TxTimeoutSeconds),
		},
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: destination,
				Amount:      payment,
				Asset:       txnbuild.NativeAsset{},
			},
		},
	})
	if err != nil {
		return "", cerr.NewError(cerr.Internal, "failed to build transaction", err)
	}
	envelope, err := tx.Base64()
	if err != nil {
		return "", cerr.NewError(cerr.Internal, "failed to encode transaction", err)
	}

	signed, err := c.signer.SignTransaction(ctx, envelope, c.cfg.NetworkPassphrase)
	if err != nil {
		if errors.Is(err, wallet.ErrDeclined) {
			return "", cerr.NewError(cerr.Declined, "transaction rejected by user", err)
		}
		return "", cerr.NewError(cerr.Internal, "transaction signing failed", err)
	}
	if signed == "" {
		return "", cerr.NewError(cerr.Internal, "wallet returned an empty signed transaction", nil)
	}

	result, err := c.horizon.SubmitTransactionXDR(signed)
	if err != nil {
		return "", submissionError(err)
	}
	slog.InfoContext(ctx, "payment submitted", "hash", result.Hash, "destination", destination, "amount", payment)
	return result.Hash, nil
}

// submissionError surfaces the remote's operation-level result codes
// joined into one message, falling back to the transaction code and then
// to a generic message.
func submissionError(err error) error {
	if herr := horizonclient.GetError(err); herr != nil {
		if codes, rcErr := herr.ResultCodes(); rcErr == nil {
			if len(codes.OperationCodes) > 0 {
				return cerr.NewError(cerr.FailedPrecondition, strings.Join(codes.OperationCodes, ", "), err)
			}
			if codes.TransactionCode != "" {
				return cerr.NewError(cerr.FailedPrecondition, codes.TransactionCode, err)
			}
		}
	}
	return cerr.NewError(cerr.Internal, "transaction submission failed", err)
}

// FundWithFriendbot credits address with starting funds. Test network only.
func (c *Client) FundWithFriendbot(ctx context.Context, address string) error {
	if c.friendbotURL == "" {
		return cerr.NewError(cerr.Unimplemented, "friendbot is not configured for this network", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.friendbotURL+"?addr="+url.QueryEscape(address), nil)
	if err != nil {
		return cerr.NewError(cerr.Internal, "funding request failed", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "friendbot is unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return cerr.NewError(cerr.Unavailable, "friendbot refused the funding request",
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}
	slog.InfoContext(ctx, "account funded via friendbot", "address", address)
	return nil
}
