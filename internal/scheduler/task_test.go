package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestTask_BurstRunsOnce(t *testing.T) {
	var runs atomic.Int32
	task := NewTask(80*time.Millisecond, func() { runs.Add(1) })
	defer task.Close()

	for i := 0; i < 10; i++ {
		task.Schedule()
		time.Sleep(2 * time.Millisecond)
	}

	eventually(t, time.Second, 10*time.Millisecond, func() bool {
		return runs.Load() == 1
	}, "expected exactly one run")

	time.Sleep(100 * time.Millisecond)
	if n := runs.Load(); n != 1 {
		t.Errorf("runs = %d, want 1", n)
	}
	if task.Pending() {
		t.Error("task should be idle after running")
	}
}

func TestTask_SeparateBurstsRunSeparately(t *testing.T) {
	var runs atomic.Int32
	task := NewTask(20*time.Millisecond, func() { runs.Add(1) })
	defer task.Close()

	task.Schedule()
	eventually(t, time.Second, 5*time.Millisecond, func() bool { return runs.Load() == 1 }, "first run missing")
	task.Schedule()
	eventually(t, time.Second, 5*time.Millisecond, func() bool { return runs.Load() == 2 }, "second run missing")
}

func TestTask_Cancel(t *testing.T) {
	var runs atomic.Int32
	task := NewTask(30*time.Millisecond, func() { runs.Add(1) })
	defer task.Close()

	task.Schedule()
	if !task.Cancel() {
		t.Fatal("Cancel should report a pending run")
	}
	if task.Cancel() {
		t.Error("second Cancel should report nothing pending")
	}
	time.Sleep(80 * time.Millisecond)
	if runs.Load() != 0 {
		t.Error("cancelled task ran")
	}
}

func TestTask_Flush(t *testing.T) {
	var runs atomic.Int32
	task := NewTask(time.Hour, func() { runs.Add(1) })
	defer task.Close()

	if task.Flush() {
		t.Error("Flush with nothing pending should report false")
	}
	task.Schedule()
	if !task.Flush() {
		t.Fatal("Flush should run the pending job")
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
	if task.Pending() {
		t.Error("nothing should be pending after Flush")
	}
}

func TestTask_CloseStopsScheduling(t *testing.T) {
	var runs atomic.Int32
	task := NewTask(10*time.Millisecond, func() { runs.Add(1) })
	task.Schedule()
	task.Close()
	task.Schedule()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != 0 {
		t.Error("closed task ran")
	}
}

func TestTask_RunsDoNotOverlap(t *testing.T) {
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	task := NewTask(time.Millisecond, func() {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
	})
	defer task.Close()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.Schedule()
			task.Flush()
		}()
	}
	wg.Wait()
	time.Sleep(60 * time.Millisecond)
	if maxActive.Load() > 1 {
		t.Errorf("max concurrent runs = %d, want 1", maxActive.Load())
	}
}

func TestGroup_PerKeyDebounce(t *testing.T) {
	g := NewGroup(30 * time.Millisecond)
	defer g.Close()

	var mu sync.Mutex
	got := map[string]int{}
	record := func(key string, v int) func() {
		return func() {
			mu.Lock()
			got[key] = v
			mu.Unlock()
		}
	}

	g.Schedule("a.html", record("a.html", 1))
	g.Schedule("b.html", record("b.html", 1))
	g.Schedule("a.html", record("a.html", 2))
	if g.Pending() != 2 {
		t.Errorf("pending = %d, want 2", g.Pending())
	}

	eventually(t, time.Second, 10*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, "both keys should run")

	mu.Lock()
	defer mu.Unlock()
	if got["a.html"] != 2 {
		t.Errorf("a.html ran job %d, want latest (2)", got["a.html"])
	}
}

func TestGroup_CancelAndClose(t *testing.T) {
	g := NewGroup(20 * time.Millisecond)
	var runs atomic.Int32
	g.Schedule("x", func() { runs.Add(1) })
	if !g.Cancel("x") {
		t.Error("Cancel should report pending job")
	}
	if g.Cancel("x") {
		t.Error("second Cancel should report nothing")
	}
	g.Schedule("y", func() { runs.Add(1) })
	g.Close()
	g.Schedule("z", func() { runs.Add(1) })
	time.Sleep(60 * time.Millisecond)
	if runs.Load() != 0 {
		t.Errorf("runs = %d, want 0", runs.Load())
	}
}
