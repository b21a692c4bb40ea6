// Command keycheck reports whether WALLET_PRIVATE_KEY would be accepted at
// startup without printing any part of it.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/GoPolymarket/polychat/internal/config"
	"github.com/GoPolymarket/polychat/internal/keyguard"
	"github.com/GoPolymarket/polychat/internal/pkg/logger"
	"github.com/GoPolymarket/polychat/internal/signer"
)

type report struct {
	keyguard.Diagnostics
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Address string `json:"address,omitempty"`
	ChainID int64  `json:"chain_id,omitempty"`
}

func main() {
	// keep stdout for the report
	logger.Init("error")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	rep := report{Diagnostics: keyguard.Describe(cfg.Wallet.PrivateKey)}
	formatted, err := keyguard.Validate(cfg.Wallet.PrivateKey)
	if err == nil {
		var id *signer.Signer
		id, err = signer.NewSigner(formatted, cfg.Chain.ChainID)
		if err == nil {
			rep.Valid = true
			rep.Address = id.Address().Hex()
			rep.ChainID = id.ChainID()
		}
	}
	if err != nil {
		rep.Error = err.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rep)
	if !rep.Valid {
		os.Exit(1)
	}
}
