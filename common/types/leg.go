package types

import "time"

// LegRecord is the persisted outcome of one leg for one wallet.
type LegRecord struct {
	Wallet       string    `json:"wallet"`
	Route        string    `json:"route"`
	Source       ChainName `json:"source"`
	Destination  ChainName `json:"destination"`
	Token        string    `json:"token"`
	AmountIn     string    `json:"amountIn"`
	AmountOutMin string    `json:"amountOutMin"`
	Status       LegStatus `json:"status"`
	SubStatus    SubStatus `json:"subStatus"`
	TxHash       string    `json:"txHash,omitempty"`
	ExplorerURL  string    `json:"explorerUrl,omitempty"`
	LayerZeroURL string    `json:"layerZeroUrl,omitempty"`
	Error        string    `json:"error,omitempty"`
	Repetition   int       `json:"repetition"`
	LegIndex     int       `json:"legIndex"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// BalanceEntry is one wallet's bridge-token balance on one chain.
type BalanceEntry struct {
	Wallet  string    `json:"wallet"`
	Chain   ChainName `json:"chain"`
	Token   string    `json:"token"`
	Raw     string    `json:"raw"`
	Human   string    `json:"human"`
	Dust    bool      `json:"dust"`
	Error   string    `json:"error,omitempty"`
	Checked time.Time `json:"checked"`
}
