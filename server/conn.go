package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// wire 单个连接的底层收发：TCP 按行读，WebSocket 按帧读
type wire interface {
	ReadFrame() ([]byte, error)
	WriteFrame(b []byte) error
	Ping() error
	SetWriteDeadline(t time.Time) error
	Close() error
	RemoteAddr() string
}

// tcpWire 行分隔的 TCP 字节流
type tcpWire struct {
	conn net.Conn
	r    *bufio.Reader
}

func newTCPWire(conn net.Conn) *tcpWire {
	return &tcpWire{conn: conn, r: bufio.NewReaderSize(conn, 4096)}
}

// ReadFrame 读取一行；超过 MaxLineBytes 的行读到换行为止后丢弃，返回 ErrLineTooLong
func (t *tcpWire) ReadFrame() ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := t.r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > MaxLineBytes {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch {
		case err == nil:
			if tooLong {
				return nil, ErrLineTooLong
			}
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0 && !tooLong:
			// 流末尾没有换行的最后一条
			return line, nil
		default:
			return nil, err
		}
	}
}

func (t *tcpWire) WriteFrame(b []byte) error {
	_, err := t.conn.Write(b)
	return err
}

func (t *tcpWire) Ping() error                        { return nil }
func (t *tcpWire) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }
func (t *tcpWire) Close() error                       { return t.conn.Close() }
func (t *tcpWire) RemoteAddr() string                 { return t.conn.RemoteAddr().String() }

// wsWire WebSocket 文本帧；一帧内可以包含多条以 \n 分隔的消息
type wsWire struct {
	ws *websocket.Conn
}

func newWSWire(ws *websocket.Conn) *wsWire {
	ws.SetReadLimit(MaxLineBytes)
	_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	return &wsWire{ws: ws}
}

func (w *wsWire) ReadFrame() ([]byte, error) {
	_, payload, err := w.ws.ReadMessage()
	return payload, err
}

func (w *wsWire) WriteFrame(b []byte) error {
	return w.ws.WriteMessage(websocket.TextMessage, b)
}

func (w *wsWire) Ping() error                        { return w.ws.WriteMessage(websocket.PingMessage, nil) }
func (w *wsWire) SetWriteDeadline(d time.Time) error { return w.ws.SetWriteDeadline(d) }
func (w *wsWire) Close() error                       { return w.ws.Close() }
func (w *wsWire) RemoteAddr() string                 { return w.ws.RemoteAddr().String() }

// ClientConn 负责发送（写）数据到客户端：有界队列 + 独立写协程
type ClientConn struct {
	wire         wire
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
	metrics      *Metrics
}

// NewClientConn 包装底层连接；pingInterval 为 0 时不发心跳
func NewClientConn(w wire, queue int, writeTimeout, pingInterval time.Duration, metrics *Metrics) *ClientConn {
	return &ClientConn{
		wire:         w,
		send:         make(chan []byte, queue),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		metrics:      metrics,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃该帧）
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃（防止慢客户端阻塞 Tick 或其他连接）
		c.metrics.IncSendDropped()
		return false
	}
}

// Close 关闭底层连接并结束写协程；可重复调用
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		_ = c.wire.Close()
		close(c.done)
	})
}

// RemoteAddr 对端地址
func (c *ClientConn) RemoteAddr() string { return c.wire.RemoteAddr() }

// writePump 独立协程，负责从 send 队列写出；任何写错误都关闭连接，读端随之退出并清理
func (c *ClientConn) writePump() {
	defer c.Close()

	var ping <-chan time.Time
	if c.pingInterval > 0 {
		t := time.NewTicker(c.pingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case msg := <-c.send:
			_ = c.wire.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.wire.WriteFrame(msg); err != nil {
				Log.Debugf("write to %s failed: %v", c.RemoteAddr(), err)
				return
			}
		case <-ping:
			_ = c.wire.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.wire.Ping(); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
