package capability

import (
	"context"
	"fmt"
	"time"

	"railrelay/internal/cipher"
	rrerr "railrelay/internal/errors"
	"railrelay/internal/metrics"
	"railrelay/internal/protocol"
	"railrelay/internal/registry"
	"railrelay/internal/session"
	"railrelay/internal/sink"
	"railrelay/util"
)

// Decipher reads records from one client, deciphers payloads with the
// key each carries, and hands the plaintext to a sink.  Nothing is
// ever written back to the client.
type Decipher struct {
	Registry     *registry.Registry
	Sink         sink.Sink
	Metrics      *metrics.Collector
	BufferSize   int
	EvictOnClose bool
}

// Handle runs the receive loop until the peer disconnects, sends the
// disconnect sentinel, or ctx is cancelled.  A peer that hangs up is
// reported as ErrPeerClosed.
func (d *Decipher) Handle(ctx context.Context, sess *session.Session) error {
	stop := util.CloseOnDone(ctx, sess.Conn)
	defer stop()
	defer sess.Conn.Close()
	if d.EvictOnClose {
		defer d.Registry.Forget(sess.Identity)
	}

	buf, release := d.buffer()
	defer release()

	for {
		n, closed, err := util.ReadChunk(sess.Conn, buf)
		if n > 0 {
			d.Metrics.BytesReceived(n)
			if d.process(ctx, sess, buf[:n]) {
				return nil
			}
		}

		switch {
		case ctx.Err() != nil:
			return nil
		case closed:
			sess.Logger.Info("%s disconnected", d.displayName(sess, false))
			return rrerr.ErrPeerClosed
		case err != nil:
			d.Metrics.RecordError("read", err.Error())
			return rrerr.Wrap("read", sess.Identity, err)
		}
	}
}

// buffer returns a receive buffer of BufferSize bytes, pooled when it
// matches the default size.
func (d *Decipher) buffer() ([]byte, func()) {
	size := d.BufferSize
	if size <= 0 || size == util.DefaultBufSize {
		bp := util.GetBuf()
		return *bp, func() { util.PutBuf(bp) }
	}
	return make([]byte, size), func() {}
}

// process handles every record in one received chunk and reports
// whether the session should end.
func (d *Decipher) process(ctx context.Context, sess *session.Session, chunk []byte) bool {
	records, perr := protocol.SplitRecords(chunk)
	for _, r := range records {
		if d.handleRecord(ctx, sess, r) {
			return true
		}
	}
	if perr != nil {
		d.Metrics.RecordError("malformed", perr.Error())
		sess.Logger.Warn("%v", rrerr.WrapRecord(sess.Identity, perr))
	}
	return false
}

func (d *Decipher) handleRecord(ctx context.Context, sess *session.Session, r protocol.Record) bool {
	if r.IsIdentification() {
		d.Metrics.RecordReceived("identify")
		d.Registry.RecordIdentity(sess.Identity, r.Name)
		sess.State = session.Active
		sess.Logger.Info("%s joined.", r.Name)
		return false
	}

	if r.IsDisconnect() {
		d.Metrics.RecordReceived("disconnect")
		sess.Logger.Info("%s is offline now.", d.displayName(sess, true))
		return true
	}

	d.Metrics.RecordReceived("payload")
	name := d.displayName(sess, true)
	d.Registry.RecordKey(sess.Identity, r.Key)

	text, err := cipher.Decode(r.Msg, r.Key)
	if err != nil {
		d.Metrics.RecordError("invalid_key", err.Error())
		sess.Logger.Warn("%v", rrerr.WrapRecord(sess.Identity, err))
		return false
	}

	// Some clients run the sentinel through the cipher as well.
	if text == protocol.Disconnected {
		sess.Logger.Info("%s is offline now.", name)
		return true
	}

	d.Metrics.MessageDecoded()
	msg := sink.Message{
		Identity:  sess.Identity,
		Name:      name,
		Text:      text,
		Key:       r.Key,
		SessionID: sess.ID,
		At:        time.Now(),
	}
	if err := d.sink(sess).Deliver(ctx, msg); err != nil {
		d.Metrics.RecordError("sink", err.Error())
		sess.Logger.Warn("deliver: %v", err)
	}
	return false
}

// displayName resolves the peer's name, falling back to
// "unknown(<identity>)".  When report is set an unknown peer is
// logged and counted.
func (d *Decipher) displayName(sess *session.Session, report bool) string {
	name, err := d.Registry.DisplayNameOf(sess.Identity)
	if err == nil {
		return name
	}
	if report {
		d.Metrics.RecordError("unknown_identity", err.Error())
		sess.Logger.Warn("%v", rrerr.WrapRecord(sess.Identity, err))
	}
	return fmt.Sprintf("unknown(%s)", sess.Identity)
}

func (d *Decipher) sink(sess *session.Session) sink.Sink {
	if d.Sink != nil {
		return d.Sink
	}
	return &sink.LogSink{Logger: sess.Logger}
}
