package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Registry wire protocol: plain text, fields delimited by '|', one
// request per connection, reply then close.
//
//	BE|fileID|expirySeconds|length|checksum  ->  OK | ERR
//	KI|fileID                                ->  length|checksum | 0|
const (
	cmdRegister = "BE"
	cmdQuery    = "KI"

	replyOK  = "OK"
	replyErr = "ERR"

	// notFoundReply answers a query for an absent or expired entry.
	// The two cases are indistinguishable on the wire.
	notFoundReply = "0|"
)

// Dispatch executes one request line against the store and returns the
// wire reply. A malformed request (unknown command, wrong field count,
// non-numeric field) yields ERR and leaves the store untouched.
func Dispatch(st *Store, line string) string {
	parts := strings.Split(line, "|")
	switch parts[0] {
	case cmdRegister:
		if len(parts) != 5 {
			return replyErr
		}
		ttlSeconds, err := strconv.Atoi(parts[2])
		if err != nil {
			return replyErr
		}
		length, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			return replyErr
		}
		st.Put(parts[1], parts[4], length, time.Duration(ttlSeconds)*time.Second)
		return replyOK
	case cmdQuery:
		if len(parts) != 2 {
			return replyErr
		}
		rec, ok := st.Get(parts[1])
		if !ok {
			return notFoundReply
		}
		return fmt.Sprintf("%d|%s", rec.Length, rec.Checksum)
	default:
		return replyErr
	}
}
