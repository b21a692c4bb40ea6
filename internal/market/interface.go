package market

// Provider serves cached order books to the tools and the risk engine.
type Provider interface {
	Subscribe(tokenIDs []string)
	GetBook(tokenID string) *Orderbook
	Start()
	Stop()
}
