package server

import (
	"bytes"
	"io"
	"strconv"
)

// responseHeaders are written before Content-Length on every response.
var responseHeaders = []string{
	"HTTP/1.1 200 OK",
	"Content-Type: application/json",
	"Access-Control-Allow-Origin: *",
	"Access-Control-Allow-Methods: GET, POST, OPTIONS",
	"Access-Control-Allow-Headers: Content-Type",
	"Connection: close",
}

// writeJSON writes a complete 200 response carrying body in a single write.
func writeJSON(w io.Writer, body []byte) error {
	_, err := w.Write(buildResponse(body))
	return err
}

func buildResponse(body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(256 + len(body))

	for _, h := range responseHeaders {
		buf.WriteString(h)
		buf.WriteString("\r\n")
	}
	buf.WriteString("Content-Length: ")
	buf.WriteString(strconv.Itoa(len(body)))
	buf.WriteString("\r\n\r\n")
	buf.Write(body)

	return buf.Bytes()
}
