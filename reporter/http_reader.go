// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"io"
	"net/http"
	"net/url"
)

type HttpReader struct {
	serverIP   string // listen ip
	serverPort string // listen port
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return &HttpReader{
		serverIP:   serverIP,
		serverPort: serverPort,
	}
}

func (hr *HttpReader) get(route string, query url.Values) (int, string, error) {
	u := url.URL{
		Scheme:   "http",
		Host:     hr.serverIP + ":" + hr.serverPort,
		Path:     route,
		RawQuery: query.Encode(),
	}
	resp, err := http.Get(u.String())
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}

func (hr *HttpReader) GetHello() (string, error) {
	_, body, err := hr.get(ROUTE_HELLO, nil)
	return body, err
}

func (hr *HttpReader) GetSwap(id string) (int, string, error) {
	return hr.get(ROUTE_SWAP, url.Values{"id": {id}})
}

func (hr *HttpReader) GetSwapsFor(address string) (int, string, error) {
	return hr.get(ROUTE_SWAPS, url.Values{"address": {address}})
}

func (hr *HttpReader) GetChains() (int, string, error) {
	return hr.get(ROUTE_CHAINS, nil)
}

func (hr *HttpReader) GetStats() (int, string, error) {
	return hr.get(ROUTE_STATS, nil)
}
