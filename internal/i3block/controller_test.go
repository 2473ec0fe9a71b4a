package i3block

import (
	"errors"
	"syscall"
	"testing"
)

func TestFirstPID(t *testing.T) {
	if pid, err := firstPID("1234\n5678\n"); err != nil || pid != 1234 {
		t.Errorf("firstPID = %d, %v", pid, err)
	}
	if _, err := firstPID("  \n"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := firstPID("abc"); err == nil {
		t.Error("expected parse error")
	}
}

func TestNotify(t *testing.T) {
	t.Run("SendsConfiguredSignal", func(t *testing.T) {
		c := NewController(0)
		c.findPID = func() (int, error) { return 42, nil }
		var gotPID int
		var gotSig syscall.Signal
		c.send = func(pid int, sig syscall.Signal) error {
			gotPID, gotSig = pid, sig
			return nil
		}

		if err := c.Notify(); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
		if gotPID != 42 || gotSig != DefaultSignal {
			t.Errorf("sent %v to %d", gotSig, gotPID)
		}
	})

	t.Run("NotRunning", func(t *testing.T) {
		c := NewController(0)
		c.findPID = func() (int, error) { return -1, ErrNotFound }
		c.send = func(int, syscall.Signal) error {
			t.Fatal("must not signal without a PID")
			return nil
		}
		if err := c.Notify(); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RestartedProcess", func(t *testing.T) {
		pids := []int{10, 20}
		c := NewController(syscall.Signal(40))
		c.findPID = func() (int, error) {
			pid := pids[0]
			pids = pids[1:]
			return pid, nil
		}
		var sent []int
		c.send = func(pid int, sig syscall.Signal) error {
			sent = append(sent, pid)
			if pid == 10 {
				return errors.New("no such process")
			}
			return nil
		}

		if err := c.Notify(); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
		if len(sent) != 2 || sent[1] != 20 {
			t.Errorf("expected retry on new PID, sent %v", sent)
		}
	})
}

func TestStartStop(t *testing.T) {
	c := NewController(0)
	c.findPID = func() (int, error) { return 7, nil }

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err == nil {
		t.Error("second Start must fail")
	}
	if c.GetPID() != 7 {
		t.Errorf("PID not refreshed on start, got %d", c.GetPID())
	}
	c.Stop()
	c.Stop()
}
