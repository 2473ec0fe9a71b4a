package i3block

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultSignal i3blocks 中 signal=21 对应 SIGRTMIN+21
	DefaultSignal  = syscall.Signal(55)
	refreshEvery   = 10 * time.Second
	processPattern = "i3blocks"
)

var ErrNotFound = errors.New("i3blocks process not found")

// Controller 跟踪 i3blocks 的 PID，歌词变化时发信号让它刷新
type Controller struct {
	sig      syscall.Signal
	pid      int
	pidMutex sync.RWMutex
	stopChan chan struct{}
	running  bool
	runMutex sync.Mutex

	findPID func() (int, error)
	send    func(pid int, sig syscall.Signal) error
}

func logger() *zerolog.Logger {
	l := log.With().Str("component", "i3block").Logger()
	return &l
}

func NewController(sig syscall.Signal) *Controller {
	if sig == 0 {
		sig = DefaultSignal
	}
	return &Controller{
		sig:     sig,
		pid:     -1,
		findPID: pgrep,
		send:    sendSignal,
	}
}

// Start 立即刷新一次 PID，之后每 10 秒刷新
func (c *Controller) Start() error {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if c.running {
		return fmt.Errorf("controller is already running")
	}

	if err := c.refreshPID(); err != nil {
		logger().Warn().Err(err).Msg("i3blocks not running yet")
	}

	c.stopChan = make(chan struct{})
	c.running = true
	go c.monitorLoop(c.stopChan)

	logger().Info().Msg("i3block controller started")
	return nil
}

func (c *Controller) Stop() {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if !c.running {
		return
	}
	close(c.stopChan)
	c.running = false

	logger().Info().Msg("i3block controller stopped")
}

func (c *Controller) monitorLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.refreshPID(); err != nil {
				logger().Debug().Err(err).Msg("Failed to refresh i3blocks PID")
			}
		case <-stop:
			return
		}
	}
}

func (c *Controller) refreshPID() error {
	pid, err := c.findPID()
	if err != nil {
		pid = -1
	}

	c.pidMutex.Lock()
	oldPID := c.pid
	c.pid = pid
	c.pidMutex.Unlock()

	if oldPID != pid && pid > 0 {
		logger().Info().Int("old_pid", oldPID).Int("pid", pid).Msg("i3blocks PID updated")
	}
	return err
}

func (c *Controller) GetPID() int {
	c.pidMutex.RLock()
	defer c.pidMutex.RUnlock()
	return c.pid
}

// Notify 发送刷新信号；PID 失效时重新查找一次
func (c *Controller) Notify() error {
	pid := c.GetPID()
	if pid <= 0 {
		if err := c.refreshPID(); err != nil {
			return err
		}
		pid = c.GetPID()
	}

	if err := c.send(pid, c.sig); err != nil {
		// 进程可能已经重启
		if rerr := c.refreshPID(); rerr != nil {
			return fmt.Errorf("signal %d to %d: %w", c.sig, pid, err)
		}
		return c.send(c.GetPID(), c.sig)
	}
	return nil
}

func pgrep() (int, error) {
	output, err := exec.Command("pgrep", "-x", processPattern).Output()
	if err != nil {
		return -1, ErrNotFound
	}
	return firstPID(string(output))
}

// firstPID 多个 PID 时取第一个
func firstPID(output string) (int, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return -1, ErrNotFound
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return -1, fmt.Errorf("failed to parse PID: %w", err)
	}
	return pid, nil
}

func sendSignal(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(sig)
}
