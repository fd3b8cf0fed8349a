package relay

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/learn-decentralized-systems/toyqueue"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/kasugamirai/nostr-crdt/crypto"
	"github.com/kasugamirai/nostr-crdt/protocol"
	"github.com/kasugamirai/nostr-crdt/utils"
)

const (
	readChunk   = 4096
	outQueueLen = 1 << 16

	minRetryPeriod = time.Second / 2
	maxRetryPeriod = time.Minute
)

var ErrClientClosed = errors.New("relay: client closed")

// Server is a minimal broadcast relay: every event read from one
// connection is fanned out to all connections, the sender included.
// The echo makes delivery observably at-least-once for clients.
type Server struct {
	log    utils.Logger
	hub    *Hub
	lstn   net.Listener
	conns  *xsync.MapOf[string, net.Conn]
	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewServer(log utils.Logger, hub *Hub) *Server {
	return &Server{log: log, hub: hub, conns: xsync.NewMapOf[string, net.Conn]()}
}

func (s *Server) Listen(addr string) error {
	lstn, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "relay: listen")
	}
	s.lstn = lstn
	s.log.Info("relay: listening", "addr", lstn.Addr().String())
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.lstn == nil {
		return nil
	}
	return s.lstn.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.lstn.Accept()
		if err != nil {
			if !s.closed.Load() {
				s.log.Error("relay: accept failed", "err", err)
			}
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	s.conns.Store(peer, conn)
	defer s.conns.Delete(peer)
	s.log.Debug("relay: peer connected", "peer", peer)

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	events, cancelSub, err := s.hub.Subscribe(ctx, Filter{})
	if err != nil {
		s.log.Error("relay: subscribe failed", "peer", peer, "err", err)
		return
	}
	defer cancelSub()

	// Outbound side: hub events queue up and a writer drains the queue
	// to the socket, so one slow peer never stalls the hub.
	queue := &toyqueue.RecordQueue{Limit: outQueueLen}
	out := queue.Blocking()
	// Close leaves a parked Feed waiting on the cond; the empty Drain
	// wakes it so the writer can observe the close and exit.
	defer func() {
		_ = out.Close()
		_ = queue.Drain(toyqueue.Records{})
	}()

	go func() {
		for ev := range events {
			rec, err := protocol.FrameEvent(ev)
			if err != nil {
				s.log.Error("relay: frame failed", "event", ev.ID, "err", err)
				continue
			}
			if err := out.Drain(toyqueue.Records{rec}); err != nil {
				return
			}
		}
		_ = out.Close()
		_ = queue.Drain(toyqueue.Records{})
	}()

	go func() {
		for {
			recs, err := out.Feed()
			if err != nil {
				return
			}
			bufs := net.Buffers(recs)
			for len(bufs) > 0 {
				if _, err := bufs.WriteTo(conn); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	s.readLoop(ctx, conn, peer)
	s.log.Debug("relay: peer gone", "peer", peer)
}

func (s *Server) readLoop(ctx context.Context, conn net.Conn, peer string) {
	var buf []byte
	chunk := make([]byte, readChunk)
	for {
		n, err := conn.Read(chunk)
		if err != nil {
			return
		}
		buf = append(buf, chunk[:n]...)
		recs, rest, err := protocol.SplitFrames(buf)
		if err != nil {
			s.log.Warn("relay: bad frame, closing", "peer", peer, "err", err)
			return
		}
		for _, rec := range recs {
			ev, err := protocol.UnframeEvent(rec)
			if err != nil {
				s.log.Warn("relay: undecodable event", "peer", peer, "err", err)
				continue
			}
			if err := crypto.VerifyEvent(ev); err != nil {
				s.log.Warn("relay: rejected event", "peer", peer, "event", ev.ID, "err", err)
				continue
			}
			if err := s.hub.Publish(ctx, ev); err != nil {
				s.log.Error("relay: publish failed", "event", ev.ID, "err", err)
			}
		}
		buf = rest
	}
}

func (s *Server) Close() error {
	s.closed.Store(true)
	if s.lstn != nil {
		_ = s.lstn.Close()
	}
	s.conns.Range(func(_ string, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})
	s.hub.Close()
	s.wg.Wait()
	return nil
}

// Client connects a session to a relay server. Publish writes
// synchronously so failures surface to the caller's retry policy.
// Inbound events are deduplicated by id before local fan-out: the relay
// echoes everything back, and the seen-cache is what keeps echoed own
// writes from double-counting in the counter store.
type Client struct {
	log    utils.Logger
	addr   string
	conn   net.Conn
	wlock  sync.Mutex
	local  *Hub
	seen   *lru.Cache[uint64, struct{}]
	closed atomic.Bool
}

func Dial(log utils.Logger, addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "relay: dial")
	}
	seen, err := lru.New[uint64, struct{}](seenCacheSize)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c := &Client{
		log:   log,
		addr:  addr,
		conn:  conn,
		local: NewHub(log),
		seen:  seen,
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Publish(_ context.Context, ev *protocol.Event) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	rec, err := protocol.FrameEvent(ev)
	if err != nil {
		return err
	}
	c.seen.Add(xxhash.Sum64String(ev.ID), struct{}{})
	c.wlock.Lock()
	defer c.wlock.Unlock()
	if _, err := c.conn.Write(rec); err != nil {
		return errors.Wrap(err, "relay: write")
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, f Filter) (<-chan *protocol.Event, func(), error) {
	return c.local.Subscribe(ctx, f)
}

// readLoop reads the current connection until it fails, then redials
// with doubling backoff until Close. Events published while the link is
// down surface write errors to the caller's retry policy instead.
func (c *Client) readLoop() {
	defer c.local.Close()
	backoff := minRetryPeriod
	for {
		err := c.readConn()
		if c.closed.Load() {
			return
		}
		c.log.Debug("relay: connection lost", "err", err)
		for {
			time.Sleep(backoff)
			if c.closed.Load() {
				return
			}
			conn, err := net.Dial("tcp", c.addr)
			if err != nil {
				backoff *= 2
				if backoff > maxRetryPeriod {
					backoff = maxRetryPeriod
				}
				continue
			}
			c.wlock.Lock()
			c.conn = conn
			c.wlock.Unlock()
			backoff = minRetryPeriod
			break
		}
	}
}

func (c *Client) readConn() error {
	c.wlock.Lock()
	conn := c.conn
	c.wlock.Unlock()
	defer conn.Close()

	var buf []byte
	chunk := make([]byte, readChunk)
	for {
		n, err := conn.Read(chunk)
		if err != nil {
			return err
		}
		buf = append(buf, chunk[:n]...)
		recs, rest, err := protocol.SplitFrames(buf)
		if err != nil {
			c.log.Warn("relay: bad frame from server", "err", err)
			return err
		}
		for _, rec := range recs {
			ev, err := protocol.UnframeEvent(rec)
			if err != nil {
				c.log.Warn("relay: undecodable event", "err", err)
				continue
			}
			h := xxhash.Sum64String(ev.ID)
			if _, dup := c.seen.Get(h); dup {
				continue
			}
			c.seen.Add(h, struct{}{})
			_ = c.local.Publish(context.Background(), ev)
		}
		buf = rest
	}
}

func (c *Client) Close() error {
	c.closed.Store(true)
	c.wlock.Lock()
	err := c.conn.Close()
	c.wlock.Unlock()
	c.local.Close()
	return err
}
