package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faucetd/pkg/platform/sentinel"
)

// rpcStub serves canned JSON-RPC results keyed by method name and records the
// params object of the last request per method.
type rpcStub struct {
	t        *testing.T
	results  map[string]string
	statuses map[string]int
	params   map[string]map[string]any
}

func newRPCStub(t *testing.T) *rpcStub {
	return &rpcStub{
		t:        t,
		results:  make(map[string]string),
		statuses: make(map[string]int),
		params:   make(map[string]map[string]any),
	}
}

func (s *rpcStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string           `json:"method"`
			Params [1]map[string]any `json:"params"`
		}
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
		s.params[req.Method] = req.Params[0]

		if status, ok := s.statuses[req.Method]; ok {
			w.WriteHeader(status)
			return
		}
		result, ok := s.results[req.Method]
		require.True(s.t, ok, "unexpected method %q", req.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":` + result + `}`))
	})
}

func newTestClient(t *testing.T, stub *rpcStub) *Client {
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestAccountLines(t *testing.T) {
	stub := newRPCStub(t)
	stub.results["account_lines"] = `{
		"status": "success",
		"lines": [
			{"account": "rIssuer1", "currency": "CFC", "balance": "0", "limit": "1000000"},
			{"account": "rIssuer1", "currency": "USD", "balance": "5", "limit": "100"}
		]
	}`
	c := newTestClient(t, stub)

	lines, err := c.AccountLines(context.Background(), "rAccount1", "rIssuer1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "CFC", lines[0].Currency)
	assert.Equal(t, "1000000", lines[0].Limit)

	// The query must ask for validated state scoped to the issuer.
	assert.Equal(t, "rAccount1", stub.params["account_lines"]["account"])
	assert.Equal(t, "rIssuer1", stub.params["account_lines"]["peer"])
	assert.Equal(t, "validated", stub.params["account_lines"]["ledger_index"])
}

func TestAccountState(t *testing.T) {
	stub := newRPCStub(t)
	stub.results["account_info"] = `{
		"status": "success",
		"account_data": {"Sequence": 42},
		"ledger_index": 1337
	}`
	c := newTestClient(t, stub)

	state, err := c.AccountState(context.Background(), "rAccount1")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), state.Sequence)
	assert.Equal(t, uint32(1337), state.ValidatedLedger)
}

func TestBaseFee(t *testing.T) {
	t.Run("returns base fee drops", func(t *testing.T) {
		stub := newRPCStub(t)
		stub.results["fee"] = `{"status": "success", "drops": {"base_fee": "12"}}`
		c := newTestClient(t, stub)

		fee, err := c.BaseFee(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "12", fee)
	})

	t.Run("empty fee is an error", func(t *testing.T) {
		stub := newRPCStub(t)
		stub.results["fee"] = `{"status": "success", "drops": {}}`
		c := newTestClient(t, stub)

		_, err := c.BaseFee(context.Background())
		assert.Error(t, err)
	})
}

func TestSubmit(t *testing.T) {
	stub := newRPCStub(t)
	stub.results["submit"] = `{
		"status": "success",
		"engine_result": "tesSUCCESS",
		"engine_result_message": "The transaction was applied."
	}`
	c := newTestClient(t, stub)

	result, err := c.Submit(context.Background(), "DEADBEEF")
	require.NoError(t, err)
	assert.Equal(t, "tesSUCCESS", result.EngineResult)
	assert.Equal(t, "DEADBEEF", stub.params["submit"]["tx_blob"])
}

func TestTxStatus(t *testing.T) {
	t.Run("validated transaction", func(t *testing.T) {
		stub := newRPCStub(t)
		stub.results["tx"] = `{
			"status": "success",
			"validated": true,
			"meta": {"TransactionResult": "tesSUCCESS"}
		}`
		c := newTestClient(t, stub)

		result, err := c.TxStatus(context.Background(), "HASH1")
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.True(t, result.Validated)
		assert.Equal(t, "tesSUCCESS", result.Result)
		assert.True(t, result.Succeeded())
	})

	t.Run("unknown transaction is not an error", func(t *testing.T) {
		stub := newRPCStub(t)
		stub.results["tx"] = `{"status": "error", "error": "txnNotFound"}`
		c := newTestClient(t, stub)

		result, err := c.TxStatus(context.Background(), "HASH1")
		require.NoError(t, err)
		assert.False(t, result.Found)
		assert.False(t, result.Succeeded())
	})
}

func TestNodeErrors(t *testing.T) {
	t.Run("node-level error wraps unavailable", func(t *testing.T) {
		stub := newRPCStub(t)
		stub.results["account_info"] = `{"status": "error", "error": "actNotFound"}`
		c := newTestClient(t, stub)

		_, err := c.AccountState(context.Background(), "rAccount1")
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	})

	t.Run("non-200 status wraps unavailable", func(t *testing.T) {
		stub := newRPCStub(t)
		stub.statuses["fee"] = http.StatusServiceUnavailable
		c := newTestClient(t, stub)

		_, err := c.BaseFee(context.Background())
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	})

	t.Run("unreachable node wraps unavailable", func(t *testing.T) {
		c, err := New("http://127.0.0.1:1") // nothing listens here
		require.NoError(t, err)

		_, err = c.BaseFee(context.Background())
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	})
}

func TestSubmitResultTerminal(t *testing.T) {
	cases := []struct {
		engine   string
		terminal bool
	}{
		{"tesSUCCESS", false},
		{"tecPATH_DRY", false},
		{"terQUEUED", false},
		{"temMALFORMED", true},
		{"tefPAST_SEQ", true},
		{"", false},
	}
	for _, tc := range cases {
		r := &SubmitResult{EngineResult: tc.engine}
		assert.Equal(t, tc.terminal, r.Terminal(), "engine result %q", tc.engine)
	}
}

func TestTxResultSucceeded(t *testing.T) {
	assert.True(t, (&TxResult{Found: true, Validated: true, Result: "tesSUCCESS"}).Succeeded())
	assert.False(t, (&TxResult{Found: true, Validated: false, Result: "tesSUCCESS"}).Succeeded())
	assert.False(t, (&TxResult{Found: true, Validated: true, Result: "tecPATH_DRY"}).Succeeded())
}
