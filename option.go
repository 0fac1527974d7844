package pinetwork

import (
	"net/http"
	"time"

	"github.com/vitwit/pinetwork/clients"
	"github.com/vitwit/pinetwork/logger"
	"github.com/vitwit/pinetwork/metrics"
	"github.com/vitwit/pinetwork/settlement"
	"github.com/vitwit/pinetwork/types"
)

type Option func(*PiNetwork)

// WithNetwork selects the network transactions are signed for.
func WithNetwork(n types.Network) Option {
	return func(pi *PiNetwork) {
		pi.network = n
	}
}

// WithBaseURL overrides the Pi Platform API host.
func WithBaseURL(url string) Option {
	return func(pi *PiNetwork) {
		pi.baseURL = url
	}
}

// WithHTTPClient sets the client used for the API and the ledger.
func WithHTTPClient(c *http.Client) Option {
	return func(pi *PiNetwork) {
		pi.httpClient = c
	}
}

func WithTimeout(t time.Duration) Option {
	return func(pi *PiNetwork) {
		if t > 0 {
			pi.timeout = t
		}
	}
}

// WithTransactionTimeout bounds how long a submitted transaction stays valid.
func WithTransactionTimeout(t time.Duration) Option {
	return func(pi *PiNetwork) {
		pi.txTimeout = t
	}
}

func WithLogger(l logger.Logger) Option {
	return func(pi *PiNetwork) {
		if l != nil {
			pi.logger = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(pi *PiNetwork) {
		if r != nil {
			pi.metrics = r
		}
	}
}

// WithPaymentAPI replaces the HTTP client of the Pi Platform API.
func WithPaymentAPI(api clients.PaymentAPI) Option {
	return func(pi *PiNetwork) {
		pi.api = api
	}
}

// WithLedgerFactory replaces how ledger clients are created per network.
func WithLedgerFactory(f settlement.LedgerFactory) Option {
	return func(pi *PiNetwork) {
		pi.ledgerFactory = f
	}
}
