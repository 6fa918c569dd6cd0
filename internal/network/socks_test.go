package network

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// socksServer is a minimal no-auth SOCKS5 CONNECT proxy.
type socksServer struct {
	ln       net.Listener
	accepted atomic.Int64
}

func startSOCKSServer(t *testing.T) *socksServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	s := &socksServer{ln: ln}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.accepted.Add(1)
			go s.serve(conn)
		}
	}()
	return s
}

func (s *socksServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *socksServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	// Greeting: VER NMETHODS METHODS...
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return
	}
	if _, err := io.ReadFull(r, make([]byte, hdr[1])); err != nil {
		return
	}
	conn.Write([]byte{5, 0})

	// Request: VER CMD RSV ATYP ADDR PORT
	req := make([]byte, 4)
	if _, err := io.ReadFull(r, req); err != nil {
		return
	}
	var host string
	switch req[3] {
	case 1:
		ip := make([]byte, 4)
		io.ReadFull(r, ip)
		host = net.IP(ip).String()
	case 3:
		l, _ := r.ReadByte()
		name := make([]byte, l)
		io.ReadFull(r, name)
		host = string(name)
	default:
		return
	}
	pb := make([]byte, 2)
	io.ReadFull(r, pb)
	target := net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(pb))))

	upstream, err := net.Dial("tcp", target)
	if err != nil {
		conn.Write([]byte{5, 5, 0, 1, 0, 0, 0, 0, 0, 0})
		return
	}
	defer upstream.Close()
	conn.Write([]byte{5, 0, 0, 1, 0, 0, 0, 0, 0, 0})

	go io.Copy(upstream, r)
	io.Copy(conn, upstream)
}

func startEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestNewSOCKS5Dialer_CreatesDialer(t *testing.T) {
	dialer, err := NewSOCKS5Dialer("127.0.0.1", 1080)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dialer == nil {
		t.Fatal("expected non-nil dialer")
	}
}

func TestContextDialer_EmptyHost_ReturnsNil(t *testing.T) {
	fn, err := ContextDialer("", 1080)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fn != nil {
		t.Fatal("expected nil function for empty host")
	}
}

func TestContextDialer_RoutesThroughProxy(t *testing.T) {
	proxySrv := startSOCKSServer(t)
	echoAddr := startEchoServer(t)

	dial, err := ContextDialer("127.0.0.1", proxySrv.port())
	if err != nil {
		t.Fatalf("ContextDialer failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := dial(ctx, "tcp", echoAddr)
	if err != nil {
		t.Fatalf("dial through proxy failed: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	buf := make([]byte, 4)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("echo = %q, want ping", string(buf))
	}
	if proxySrv.accepted.Load() != 1 {
		t.Errorf("expected 1 proxied connection, got %d", proxySrv.accepted.Load())
	}
}

func TestContextDialer_ProxyUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	dial, err := ContextDialer("127.0.0.1", port)
	if err != nil {
		t.Fatalf("ContextDialer failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := dial(ctx, "tcp", "127.0.0.1:9"); err == nil {
		t.Fatal("expected error when proxy is unreachable")
	}
}
