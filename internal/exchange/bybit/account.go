package bybit

import (
	"context"
	"fmt"
	"strings"
)

// AccountType represents different account types in Bybit
type AccountType string

const (
	AccountTypeUnified  AccountType = "UNIFIED"
	AccountTypeContract AccountType = "CONTRACT"
	AccountTypeFund     AccountType = "FUND"
)

// Balance represents a coin balance in the account
type Balance struct {
	Coin             string  `json:"coin"`
	WalletBalance    float64 `json:"walletBalance"`
	AvailableToTrade float64 `json:"availableToTrade"`
	Locked           float64 `json:"locked"`
	Equity           float64 `json:"equity"`
}

// Available returns the amount free to trade. Unified accounts may leave
// availableToTrade empty, so it falls back to wallet minus locked.
func (b Balance) Available() float64 {
	if b.AvailableToTrade > 0 {
		return b.AvailableToTrade
	}
	if free := b.WalletBalance - b.Locked; free > 0 {
		return free
	}
	return 0
}

// AccountInfo represents account information
type AccountInfo struct {
	AccountType           string    `json:"accountType"`
	TotalEquity           float64   `json:"totalEquity"`
	TotalWalletBalance    float64   `json:"totalWalletBalance"`
	TotalAvailableBalance float64   `json:"totalAvailableBalance"`
	Coin                  []Balance `json:"coin"`
}

// GetAccountBalance retrieves account balance information
func (c *Client) GetAccountBalance(ctx context.Context, accountType AccountType, coins ...string) (*AccountInfo, error) {
	params := map[string]interface{}{
		"accountType": string(accountType),
	}
	if len(coins) > 0 {
		params["coin"] = strings.Join(coins, ",")
	}

	var info *AccountInfo
	err := c.do(ctx, "get account balance", true, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
		if err != nil {
			return err
		}
		info, err = parseAccountBalanceResponse(result)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// GetCoinBalance retrieves balance for a specific coin
func (c *Client) GetCoinBalance(ctx context.Context, accountType AccountType, coin string) (*Balance, error) {
	accountInfo, err := c.GetAccountBalance(ctx, accountType, coin)
	if err != nil {
		return nil, err
	}

	for _, balance := range accountInfo.Coin {
		if balance.Coin == coin {
			return &balance, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", coin, ErrCoinNotFound)
}

// parseAccountBalanceResponse parses the account balance API response
func parseAccountBalanceResponse(response interface{}) (*AccountInfo, error) {
	var walletResult struct {
		List []struct {
			AccountType           string `json:"accountType"`
			TotalEquity           string `json:"totalEquity"`
			TotalWalletBalance    string `json:"totalWalletBalance"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			Coin                  []struct {
				Coin             string `json:"coin"`
				Equity           string `json:"equity"`
				WalletBalance    string `json:"walletBalance"`
				AvailableToTrade string `json:"availableToTrade"`
				Locked           string `json:"locked"`
				TotalOrderIM     string `json:"totalOrderIM"`
				TotalPositionIM  string `json:"totalPositionIM"`
			} `json:"coin"`
		} `json:"list"`
	}

	if err := decodeResult(response, &walletResult); err != nil {
		return nil, err
	}

	if len(walletResult.List) == 0 {
		return nil, fmt.Errorf("no account data found")
	}

	account := walletResult.List[0]
	accountInfo := &AccountInfo{
		AccountType:           account.AccountType,
		TotalEquity:           parseFloat64(account.TotalEquity),
		TotalWalletBalance:    parseFloat64(account.TotalWalletBalance),
		TotalAvailableBalance: parseFloat64(account.TotalAvailableBalance),
		Coin:                  make([]Balance, len(account.Coin)),
	}

	for i, coin := range account.Coin {
		locked := parseFloat64(coin.Locked)
		if locked == 0 {
			locked = parseFloat64(coin.TotalOrderIM) + parseFloat64(coin.TotalPositionIM)
		}
		accountInfo.Coin[i] = Balance{
			Coin:             coin.Coin,
			WalletBalance:    parseFloat64(coin.WalletBalance),
			AvailableToTrade: parseFloat64(coin.AvailableToTrade),
			Locked:           locked,
			Equity:           parseFloat64(coin.Equity),
		}
	}

	return accountInfo, nil
}
