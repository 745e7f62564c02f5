// Package mcp exposes the payment-aware fetch client to agents as MCP tools.
//
// Two tools are registered:
//
//   - fetch: retrieves a URL, paying an x402 challenge at most once within the
//     configured spend ceiling, and returns status, content and payment details.
//   - walletInfo: reports the paying address and the network it pays on.
//
// # Usage
//
//	import (
//	    x402 "github.com/x402-foundation/x402-fetch"
//	    x402http "github.com/x402-foundation/x402-fetch/http"
//	    "github.com/x402-foundation/x402-fetch/mcp"
//	    "github.com/x402-foundation/x402-fetch/mechanisms/evm"
//	    evmsigners "github.com/x402-foundation/x402-fetch/signers/evm"
//	)
//
//	signer, _ := evmsigners.NewClientSignerFromPrivateKey(os.Getenv("EVM_PRIVATE_KEY"))
//	policy := x402.NewPolicy("base-sepolia", x402.DefaultSpendCeiling,
//	    x402.WithNetworkResolver(evm.CanonicalNetwork))
//	client := x402http.NewPaymentClient(evm.NewExactEvmScheme(signer), policy)
//
//	server := mcp.NewToolServer(mcp.NewFetcher(client), "1.0.0")
//	if err := server.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Every failure below the tool boundary becomes {"success": false, "error": "..."};
// the error text starts with the error code (PaymentDeclined, DoublePaymentChallenge, ...).
package mcp
