package capability

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"railrelay/internal/cipher"
	rrerr "railrelay/internal/errors"
	"railrelay/internal/protocol"
	"railrelay/internal/session"
	"railrelay/util"
)

// Compose is the client side of a relay session: it identifies the
// user, then reads message/key pairs from stdin, enciphers them, and
// sends one record per pair.
type Compose struct {
	// Name is sent in the identification record.  When empty the user
	// is asked for it.
	Name string
	// MaxRecord is the largest record the server reads in one receive;
	// bigger records are refused locally.  0 means util.DefaultBufSize.
	MaxRecord int
}

// Handle runs until stdin is exhausted, the user sends the disconnect
// sentinel, or ctx is cancelled.  In every case the server is told
// the client is leaving.
func (c *Compose) Handle(ctx context.Context, sess *session.Session) error {
	lines := scanLines(ctx, sess.Stdin, sess.Logger)
	next := func(prompt string) (string, bool) {
		if sess.Interactive && sess.Stdout != nil {
			fmt.Fprint(sess.Stdout, prompt)
		}
		select {
		case <-ctx.Done():
			return "", false
		case line, ok := <-lines:
			return line, ok
		}
	}

	name := c.Name
	if name == "" {
		var ok bool
		if name, ok = next("Enter your name : "); !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("compose: a name is required")
		}
	}
	if err := c.send(sess, protocol.Identify(name)); err != nil {
		return err
	}
	sess.State = session.Active

	for {
		msg, ok := next("Enter a message : ")
		if !ok || msg == protocol.Disconnected {
			return c.send(sess, protocol.Disconnect(0))
		}

		raw, ok := next("Enter the key : ")
		if !ok {
			return c.send(sess, protocol.Disconnect(0))
		}
		key, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			sess.Logger.Warn("%v: %q is not a number", rrerr.ErrInvalidKey, raw)
			continue
		}

		ct, err := cipher.Encode(msg, key)
		if err != nil {
			sess.Logger.Warn("%v", err)
			continue
		}
		rec := protocol.Payload(ct, key)
		if b, err := protocol.Marshal(rec); err == nil && len(b) > c.maxRecord() {
			sess.Logger.Warn("message too long: record is %d bytes, the server reads at most %d", len(b), c.maxRecord())
			continue
		}
		if err := c.send(sess, rec); err != nil {
			return err
		}
		sess.Logger.Verbose("sent %d bytes with key %d", len(ct), key)
	}
}

func (c *Compose) maxRecord() int {
	if c.MaxRecord > 0 {
		return c.MaxRecord
	}
	return util.DefaultBufSize
}

func (c *Compose) send(sess *session.Session, r protocol.Record) error {
	if err := protocol.Write(sess.Conn, r); err != nil {
		return rrerr.Wrap("write", sess.Identity, err)
	}
	return nil
}

// scanLines feeds stdin lines to a channel that is closed at EOF, so
// the caller can also wait on ctx.  A read failure is logged and ends
// input like EOF.
func scanLines(ctx context.Context, r io.Reader, log *util.Logger) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		if r == nil {
			return
		}
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			log.Error("stdin: %v", err)
		}
	}()
	return ch
}
