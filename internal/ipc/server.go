package ipc

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"lyricdesk/pkg/fileutil"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultMirrorPath 当前歌词行的镜像文件，供 i3blocks 读取
const DefaultMirrorPath = "/tmp/lyrics"

const writeTimeout = time.Second

// Message 推送给 GUI 客户端的一帧，每帧一行 JSON
type Message struct {
	Song        string   `json:"song,omitempty"`
	Lines       []string `json:"lines"`
	Current     int      `json:"current"` // Lines 中当前行的下标，-1 表示没有
	Translation string   `json:"translation,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// StatusMessage 只有提示文字的帧
func StatusMessage(status string) Message {
	return Message{Lines: []string{}, Current: -1, Status: status}
}

// Text 镜像文件中写入的文字
func (m Message) Text() string {
	if m.Current >= 0 && m.Current < len(m.Lines) {
		return m.Lines[m.Current]
	}
	return m.Status
}

// Server unix socket 上的广播服务，同一 socket 只允许一个实例
type Server struct {
	socketPath string
	mirrorPath string

	ln   net.Listener
	lock *pidLock

	mu      sync.Mutex
	clients map[net.Conn]struct{}
	last    []byte // 最近一帧，新客户端连上时先发送
}

func logger() *zerolog.Logger {
	l := log.With().Str("component", "ipc").Logger()
	return &l
}

// NewServer mirrorPath 为空时不写镜像文件
func NewServer(socketPath, mirrorPath string) *Server {
	return &Server{
		socketPath: socketPath,
		mirrorPath: mirrorPath,
		clients:    make(map[net.Conn]struct{}),
	}
}

func (s *Server) Start() error {
	lock, err := acquirePIDLock(s.socketPath + ".lock")
	if err != nil {
		return err
	}

	// 持有锁时残留的 socket 一定来自已退出的实例
	if err := os.RemoveAll(s.socketPath); err != nil {
		lock.release()
		return err
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		lock.release()
		return err
	}
	s.ln, s.lock = ln, lock

	logger().Info().Str("socket_path", s.socketPath).Msg("IPC server listening")
	go s.serve()
	return nil
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger().Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		s.addClient(conn)
		go s.watch(conn)
	}
}

// addClient 在锁内补发最近一帧并登记，保证之后的广播不会排到它前面
func (s *Server) addClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil {
		if err := writeFrame(conn, s.last); err != nil {
			logger().Warn().Err(err).Msg("Failed to send initial frame")
			conn.Close()
			return
		}
	}
	s.clients[conn] = struct{}{}
	logger().Info().Int("clients", len(s.clients)).Msg("GUI client connected")
}

// watch 客户端不发数据，读到 EOF 即断开
func (s *Server) watch(conn net.Conn) {
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}
	s.dropClient(conn)
}

func (s *Server) dropClient(conn net.Conn) {
	s.mu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()

	if ok {
		conn.Close()
		logger().Info().Msg("GUI client disconnected")
	}
}

func writeFrame(conn net.Conn, frame []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := conn.Write(frame)
	return err
}

// Broadcast 推送给所有客户端并更新镜像文件
func (s *Server) Broadcast(msg Message) {
	if msg.Lines == nil {
		msg.Lines = []string{}
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		logger().Error().Err(err).Msg("Failed to encode message")
		return
	}
	frame = append(frame, '\n')

	s.writeMirror(msg.Text())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = frame
	for conn := range s.clients {
		if err := writeFrame(conn, frame); err != nil {
			logger().Warn().Err(err).Msg("Failed to write to client, removing")
			delete(s.clients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeMirror(text string) {
	if s.mirrorPath == "" || text == "" {
		return
	}
	if err := fileutil.WriteFileAtomic(s.mirrorPath, []byte(text+"\n"), 0644); err != nil {
		logger().Warn().Err(err).Str("path", s.mirrorPath).Msg("Failed to write mirror file")
	}
}

// ClientCount 当前连接的客户端数量
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) Close() {
	if s.ln != nil {
		s.ln.Close()
		os.Remove(s.socketPath)
	}
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[net.Conn]struct{})
	s.mu.Unlock()
	s.lock.release()
}
