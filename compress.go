package snoochat

import (
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// REST requests ask for gzip explicitly, which turns off net/http's
// transparent decompression, so bodies are unwrapped here.
const acceptEncoding = "gzip"

// readBody returns the decoded response body.
func readBody(resp *http.Response) ([]byte, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return io.ReadAll(resp.Body)
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
