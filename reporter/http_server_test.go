package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/swap"
)

type stubSwaps struct {
	infos map[string]*swap.Info
}

func (s *stubSwaps) GetSwapInfo(id string) (*swap.Info, error) {
	info, ok := s.infos[id]
	if !ok {
		return nil, fmt.Errorf("%w: swap %s", htlc.ErrNotFound, id)
	}
	return info.Redacted(), nil
}

func (s *stubSwaps) ListSwapsFor(address string) []*swap.Info {
	var out []*swap.Info
	for _, info := range s.infos {
		if info.Involves(address) {
			out = append(out, info.Redacted())
		}
	}
	return out
}

type stubChains []htlc.ChainID

func (s stubChains) Chains() []htlc.ChainID { return s }

func newTestServer(t *testing.T) (*HttpReader, *swap.Info) {
	gin.SetMode(gin.TestMode)

	secret, hl, err := hashlock.Generate()
	require.NoError(t, err)
	info := &swap.Info{
		ID: "s1",
		Config: swap.Config{
			SourceChain:      htlc.ChainEthereum,
			DestinationChain: htlc.ChainAptos,
			SourceAmount:     decimal.RequireFromString("1"),
			DestAmount:       decimal.RequireFromString("50"),
			SenderAddress:    "alice",
			ReceiverAddress:  "bob",
			TimeLockHours:    24,
		},
		Status:    swap.StatusInitiated,
		HashLock:  hl,
		Secret:    secret,
		CreatedAt: time.Unix(1_700_000_000, 0),
	}
	swaps := &stubSwaps{infos: map[string]*swap.Info{info.ID: info}}
	chains := stubChains{htlc.ChainAptos, htlc.ChainEthereum}

	stats := StatsFunc(func(context.Context) (map[swap.Status]int, error) {
		counts := map[swap.Status]int{}
		for _, info := range swaps.infos {
			counts[info.Status]++
		}
		return counts, nil
	})

	srv := httptest.NewServer(NewHttpReporter("", "", swaps, chains, stats).SetupRouter())
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return NewHttpReader(host, port), info
}

func TestHello(t *testing.T) {
	reader, _ := newTestServer(t)
	body, err := reader.GetHello()
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"world"}`, body)
}

func TestSwapRoute(t *testing.T) {
	reader, info := newTestServer(t)

	code, body, err := reader.GetSwap(info.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	var resp struct {
		Data swap.Info `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, info.ID, resp.Data.ID)
	assert.Equal(t, info.HashLock, resp.Data.HashLock)
	// the secret is not public before the claim
	assert.Nil(t, resp.Data.Secret)
	assert.NotContains(t, body, info.Secret.String())

	code, _, err = reader.GetSwap("missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)

	code, _, err = reader.GetSwap("")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSwapsRoute(t *testing.T) {
	reader, info := newTestServer(t)

	code, body, err := reader.GetSwapsFor("bob")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	var resp struct {
		Data []swap.Info `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, info.ID, resp.Data[0].ID)

	code, body, err = reader.GetSwapsFor("carol")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"data":[]}`, body)

	code, _, err = reader.GetSwapsFor("")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChainsRoute(t *testing.T) {
	reader, _ := newTestServer(t)
	code, body, err := reader.GetChains()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"data":["aptos","ethereum"]}`, body)
}

func TestStatsRoute(t *testing.T) {
	reader, _ := newTestServer(t)
	code, body, err := reader.GetStats()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"data":{"INITIATED":1}}`, body)
}
