package dhanhq

// OrderRequest is the broker-native order payload. The scalper only ever
// submits intraday market orders.
type OrderRequest struct {
	DhanClientID    string `json:"dhanClientId"`
	CorrelationID   string `json:"correlationId,omitempty"`
	TransactionType string `json:"transactionType"` // BUY | SELL
	ExchangeSegment string `json:"exchangeSegment"` // NSE_FNO, BSE_FNO, ...
	ProductType     string `json:"productType"`     // MARGIN
	OrderType       string `json:"orderType"`       // MARKET
	Validity        string `json:"validity"`        // DAY
	SecurityID      string `json:"securityId"`
	Quantity        int64  `json:"quantity"`
}

// OrderResponse is the immediate placement acknowledgement.
type OrderResponse struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
}

// Trade is one row of the trade book.
type Trade struct {
	OrderID         string  `json:"orderId"`
	SecurityID      string  `json:"securityId"`
	TransactionType string  `json:"transactionType"`
	TradedQuantity  int64   `json:"tradedQuantity"`
	TradedPrice     float64 `json:"tradedPrice"`
}

// FundLimit is the funds summary from the broker.
type FundLimit struct {
	AvailableBalance   float64 `json:"availabelBalance"` // sic: broker wire field
	UtilizedAmount     float64 `json:"utilizedAmount"`
	SODLimit           float64 `json:"sodLimit"`
	WithdrawableAmount float64 `json:"withdrawableBalance"`
}

// apiError is the broker's error envelope.
type apiError struct {
	ErrorType    string `json:"errorType"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}
