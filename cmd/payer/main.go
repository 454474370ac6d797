package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/blues/fundgate/internal/chain"
	"github.com/blues/fundgate/internal/config"
	"github.com/blues/fundgate/internal/logger"
	"github.com/shopspring/decimal"
)

// payer 开发环境下用配置中的私钥支付一笔待确认的上架费或贡献
func main() {
	to := flag.String("to", "", "Recipient address (required)")
	amount := flag.String("amount", "", "Amount in native token units, e.g. 1.5 (required)")
	timeout := flag.Duration("timeout", 30*time.Second, "RPC timeout")
	flag.Parse()

	if *to == "" || *amount == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	value, err := decimal.NewFromString(*amount)
	if err != nil || !value.IsPositive() {
		logger.Fatal("Invalid amount %q", *amount)
	}
	recipient, err := chain.CanonicalAddress(*to)
	if err != nil {
		logger.Fatal("Invalid recipient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := chain.Dial(ctx, cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to connect: %v", err)
	}
	hash, err := client.SubmitPayment(ctx, recipient, chain.ToBaseUnits(value, client.Decimals(false)))
	if err != nil {
		if pe, ok := chain.AsPaymentError(err); ok {
			logger.Fatal("Payment rejected (%s): %s", pe.Code, pe.Message)
		}
		logger.Fatal("Failed to submit payment: %v", err)
	}

	fmt.Println(hash)
}
