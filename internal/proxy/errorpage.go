package proxy

import (
	"fmt"
	"net"
)

// writeClientError writes a proxy-generated error response to conn, using
// the exact body template and header set from spec.md §6, translated from
// original_source/proxy.c's clienterror.
// Time Complexity: O(n) where n is the length of the rendered body and
// header text - formatting and two socket writes.
// Space Complexity: O(n) - the formatted header and body strings.
func writeClientError(conn net.Conn, cause, errnum, shortmsg, longmsg string) error {
	body := fmt.Sprintf(
		"<html><title>Proxy Server Error</title><body bgcolor=\"ffffff\">\r\n"+
			"%s: %s\r\n"+
			"<p>%s: %s\r\n"+
			"<hr><em>Proxy Server</em>\r\n",
		errnum, shortmsg, longmsg, cause,
	)

	header := fmt.Sprintf(
		"HTTP/1.0 %s %s\r\nContent-type: text/html\r\nContent-length: %d\r\n\r\n",
		errnum, shortmsg, len(body),
	)

	if _, err := conn.Write([]byte(header)); err != nil {
		return err
	}
	_, err := conn.Write([]byte(body))
	return err
}
