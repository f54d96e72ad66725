package coap

import (
	"strconv"
	"strings"
)

// BuildURI formats coap://<address>[:<port>]/<path>. A single leading slash on
// path is dropped; port <= 0 omits the port segment. Nothing is escaped or
// validated.
func BuildURI(path, address string, port int) string {
	path = strings.TrimPrefix(path, "/")

	var sb strings.Builder
	sb.WriteString("coap://")
	sb.WriteString(address)
	if port > 0 {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(port))
	}
	sb.WriteString("/")
	sb.WriteString(path)
	return sb.String()
}
