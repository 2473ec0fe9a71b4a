package ipc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning 另一个实例持有锁
var ErrAlreadyRunning = errors.New("another lyrics server instance is already running")

// pidLock 基于 flock 的单实例锁，进程退出时内核自动释放，
// 文件里的 PID 只用于提示
type pidLock struct {
	path string
	file *os.File
}

func acquirePIDLock(path string) (*pidLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			if pid, ok := readPID(path); ok {
				return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	// 拿到锁之后才截断
	if err := file.Truncate(0); err == nil {
		_, err = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	logger().Info().Str("lock_file", path).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return &pidLock{path: path, file: file}, nil
}

func readPID(path string) (int, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	return pid, err == nil
}

func (l *pidLock) release() {
	if l == nil || l.file == nil {
		return
	}
	os.Remove(l.path)
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
	logger().Info().Str("lock_file", l.path).Msg("Released process lock")
}
