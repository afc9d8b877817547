// 文件: pkg/server/server.go
// 交易服务器 - TCP 接入层
//
// 连接协议: 每帧一个请求文档, 响应同样分帧。
// 批次级失败 (协议错误 / 账户不存在) 不产生逐命令片段,
// 而是回一个单独的中止报文

package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"

	"stex.com/pkg/dispatch"
	"stex.com/pkg/ledger"
	"stex.com/pkg/wire"
)

// Config 服务器配置
type Config struct {
	Addr string // 监听地址, 如 ":12345"
}

func DefaultConfig() Config {
	return Config{Addr: ":12345"}
}

type Server struct {
	config     Config
	dispatcher *dispatch.Dispatcher

	ln     net.Listener
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, d *dispatch.Dispatcher) *Server {
	return &Server{
		config:     cfg,
		dispatcher: d,
		stopCh:     make(chan struct{}),
	}
}

// Start 开始监听并接受连接
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	log.Printf("[Server] listening on %s", s.config.Addr)
	return nil
}

// Addr 实际监听地址 (Addr 配置 ":0" 时由系统分配)
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Stop 停止接受新连接并等待在途请求结束
func (s *Server) Stop() {
	close(s.stopCh)
	if s.ln != nil {
		s.ln.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			log.Printf("[Server] accept: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn 同一连接上循环处理分帧请求, 直到对端关闭
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		body, err := wire.ReadFrame(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("[Server] read frame: %v", err)
			}
			return
		}

		resp := s.serve(ctx, body)
		if err := wire.WriteFrame(conn, resp); err != nil {
			log.Printf("[Server] write response: %v", err)
			return
		}
	}
}

// serve 处理一帧请求, 恒定产出一个响应体
func (s *Server) serve(ctx context.Context, body []byte) []byte {
	batch, err := wire.ParseRequest(body)
	if err != nil {
		return []byte("<error>Invalid request</error>\n")
	}

	fragments, err := s.dispatcher.Dispatch(ctx, batch)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return []byte("<error>Account does not exist</error>\n")
		}
		log.Printf("[Server] dispatch: %v", err)
		return []byte("<error>Internal error</error>\n")
	}

	out, err := wire.Render(fragments)
	if err != nil {
		log.Printf("[Server] render response: %v", err)
		return []byte("<error>Internal error</error>\n")
	}
	return out
}
