// HttpReporter publishes the coordinator's swap records on read-only http
// routes. Records are redacted before they leave the coordinator.

package reporter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/swap"
)

const (
	ROUTE_HELLO  = "/hello"
	ROUTE_SWAP   = "/swap"
	ROUTE_SWAPS  = "/swaps"
	ROUTE_CHAINS = "/chains"
	ROUTE_STATS  = "/stats"
)

// SwapReader is the read side of the coordinator.
type SwapReader interface {
	GetSwapInfo(id string) (*swap.Info, error)
	ListSwapsFor(address string) []*swap.Info
}

// ChainLister reports the chains a swap can use.
type ChainLister interface {
	Chains() []htlc.ChainID
}

// StatsReader counts the stored swaps per status.
type StatsReader interface {
	SwapStats(ctx context.Context) (map[swap.Status]int, error)
}

// StatsFunc adapts a function to StatsReader.
type StatsFunc func(ctx context.Context) (map[swap.Status]int, error)

func (f StatsFunc) SwapStats(ctx context.Context) (map[swap.Status]int, error) {
	return f(ctx)
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	swaps  SwapReader
	chains ChainLister
	stats  StatsReader
}

func NewHttpReporter(serverIP string, serverPort string, swaps SwapReader, chains ChainLister, stats StatsReader) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		swaps:      swaps,
		chains:     chains,
		stats:      stats,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_SWAP, h.Swap)
	router.GET(ROUTE_SWAPS, h.Swaps)
	router.GET(ROUTE_CHAINS, h.Chains)
	router.GET(ROUTE_STATS, h.Stats)

	return router
}

// Run serves until ctx is done.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              h.serverIP + ":" + h.serverPort,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("http reporter listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

func (h *HttpReporter) Swap(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be provided"})
		return
	}

	info, err := h.swaps.GetSwapInfo(id)
	if errors.Is(err, htlc.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": info})
}

func (h *HttpReporter) Swaps(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address must be provided"})
		return
	}

	infos := h.swaps.ListSwapsFor(address)
	if infos == nil {
		infos = []*swap.Info{}
	}
	c.JSON(http.StatusOK, gin.H{"data": infos})
}

func (h *HttpReporter) Chains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.chains.Chains()})
}

func (h *HttpReporter) Stats(c *gin.Context) {
	counts, err := h.stats.SwapStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": counts})
}
