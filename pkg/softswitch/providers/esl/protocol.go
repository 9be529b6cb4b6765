package esl

import (
	"bufio"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// frame is one raw Event Socket message: a header block terminated by a
// blank line, optionally followed by a Content-Length body. Header
// ordering is not significant (§4.1) so frame.headers is an unordered map.
type frame struct {
	headers map[string]string
	body    string
}

// readFrame reads one header+body block from r. It tolerates header
// ordering variance; a malformed header line is skipped rather than
// aborting the whole connection, since one connection serves many events.
func readFrame(r *bufio.Reader) (*frame, error) {
	headers := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	f := &frame{headers: headers}
	if raw, ok := headers["Content-Length"]; ok {
		n, err := strconv.Atoi(raw)
		if err == nil && n > 0 {
			buf := make([]byte, n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}
			f.body = string(buf)
		}
	}
	return f, nil
}

// parseEvent decodes a frame whose body is the Event Socket's
// "Event-Name: X\nUnique-ID: Y\n..." plain text event encoding (as opposed
// to the JSON/XML encodings the protocol also supports) into an
// iface.Event. Unknown event types are passed through unfiltered — §4.1
// says the client ignores unknown types, which here means the caller's
// dispatch simply won't have a handler, not that parsing fails.
func parseEvent(body string) *iface.Event {
	headers := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if decoded, err := url.QueryUnescape(v); err == nil {
			v = decoded
		}
		headers[k] = v
	}

	return &iface.Event{
		Type:    iface.EventType(headers["Event-Name"]),
		CallID:  headers["Unique-ID"],
		Headers: headers,
		Body:    body,
	}
}
