// ════════════════════════════════════════════════════════════════════════════════════════════════
// Token Deployment Verifier
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Starknet ERC-20 Balance Resolver
// Component: JSON-RPC Contract Precheck
//
// Description:
//   Confirms, before any scanning starts, that every requested token address is a deployed
//   contract on chain by asking the node for its class hash. A token the chain has never seen
//   would otherwise just resolve to an empty balance map, hiding a typo in the input file.
//   Optional: runs only when an RPC endpoint is configured.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package tokenverify

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/sugawarayuuta/sonnet"

	"main/debug"
	"main/types"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// RPC WIRE STRUCTURES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// classHashResponse decodes a starknet_getClassHashAt reply. Exactly one of
// Result / Error is populated by a well-behaved node.
type classHashResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// HTTP TRANSPORT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// buildHTTPTransport builds the transport for the precheck's short burst of
// sequential requests.
func buildHTTPTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   3 * time.Second,  // Fast connection establishment
			KeepAlive: 30 * time.Second, // Reuse one connection across all token checks
		}).DialContext,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   4,
		TLSHandshakeTimeout:   4 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ForceAttemptHTTP2:     true,
		Proxy:                 http.ProxyFromEnvironment,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// VERIFICATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// VerifyDeployed queries the node for every token's class hash at the latest
// block. The first undeployed token (or transport failure) aborts with that
// token's identity; this is a hard input error, not retried.
func VerifyDeployed(rpcURL string, tokens []fp.Element) error {
	client := &http.Client{Timeout: 15 * time.Second, Transport: buildHTTPTransport()}

	for i := range tokens {
		tokenHex := types.FeltHex(tokens[i])
		requestJSON := `{"jsonrpc":"2.0","method":"starknet_getClassHashAt","params":["latest","` +
			tokenHex + `"],"id":1}`

		response, err := client.Post(rpcURL, "application/json", strings.NewReader(requestJSON))
		if err != nil {
			return fmt.Errorf("token verification: %s: %w", tokenHex, err)
		}
		body, err := io.ReadAll(io.LimitReader(response.Body, 4096))
		response.Body.Close()
		if err != nil {
			return fmt.Errorf("token verification: %s: %w", tokenHex, err)
		}

		var reply classHashResponse
		if err := sonnet.Unmarshal(body, &reply); err != nil {
			return fmt.Errorf("token verification: %s: malformed reply: %w", tokenHex, err)
		}
		if reply.Error != nil {
			return fmt.Errorf("token not deployed: %s: %s", tokenHex, reply.Error.Message)
		}
		if len(reply.Result) < 3 || reply.Result[:2] != "0x" {
			return fmt.Errorf("token verification: %s: unexpected class hash %q", tokenHex, reply.Result)
		}

		debug.DropMessage("VERIFY", tokenHex+" class "+reply.Result)
	}
	return nil
}
