package indexing

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// unlockLock is a test helper that unlocks and logs any error
func unlockLock(t *testing.T, lock *BuildLock) {
	t.Helper()
	if err := lock.Unlock(); err != nil {
		t.Logf("Warning: Unlock failed: %v", err)
	}
}

func TestBuildLock_TryLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "sub", LockFilename)

	lock := NewBuildLock(lockPath)
	defer unlockLock(t, lock)

	acquired, err := lock.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !acquired || !lock.IsLocked() {
		t.Error("Expected to acquire lock")
	}
	if lock.Path() != lockPath {
		t.Errorf("Expected path %s, got %s", lockPath, lock.Path())
	}
}

func TestBuildLock_TryLock_AlreadyHeld(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), LockFilename)

	lock1 := NewBuildLock(lockPath)
	acquired, err := lock1.TryLock()
	if err != nil || !acquired {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer unlockLock(t, lock1)

	lock2 := NewBuildLock(lockPath)
	acquired, err = lock2.TryLock()
	if err != nil {
		t.Fatalf("Second TryLock returned error: %v", err)
	}
	if acquired {
		t.Error("Expected second lock acquisition to fail")
		unlockLock(t, lock2)
	}
	if lock2.IsLocked() {
		t.Error("Expected second lock's IsLocked to return false")
	}
}

func TestBuildLock_Lock_Timeout(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), LockFilename)

	lock1 := NewBuildLock(lockPath)
	if acquired, err := lock1.TryLock(); err != nil || !acquired {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer unlockLock(t, lock1)

	lock2 := NewBuildLock(lockPath)
	start := time.Now()
	err := lock2.Lock(context.Background(), 100*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrLockTimeout) {
		t.Errorf("Expected ErrLockTimeout, got: %v", err)
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("Expected at least 100ms to elapse, got %v", elapsed)
	}
}

func TestBuildLock_Lock_Canceled(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), LockFilename)

	lock1 := NewBuildLock(lockPath)
	if acquired, err := lock1.TryLock(); err != nil || !acquired {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer unlockLock(t, lock1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewBuildLock(lockPath).Lock(ctx, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestBuildLock_Lock_AcquiresAfterRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), LockFilename)

	lock1 := NewBuildLock(lockPath)
	lock2 := NewBuildLock(lockPath)

	if acquired, err := lock1.TryLock(); err != nil || !acquired {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}

	var wg sync.WaitGroup
	var lock2Err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		lock2Err = lock2.Lock(context.Background(), 2*time.Second)
	}()

	time.Sleep(100 * time.Millisecond)
	if err := lock1.Unlock(); err != nil {
		t.Fatalf("Failed to unlock first lock: %v", err)
	}
	wg.Wait()

	if lock2Err != nil {
		t.Errorf("Expected second lock to succeed after release, got: %v", lock2Err)
	}
	if !lock2.IsLocked() {
		t.Error("Expected second lock to be held")
	}
	unlockLock(t, lock2)
}

func TestBuildLock_UnlockIdempotent(t *testing.T) {
	lock := NewBuildLock(filepath.Join(t.TempDir(), LockFilename))

	if err := lock.Unlock(); err != nil {
		t.Errorf("Unlock on unlocked lock failed: %v", err)
	}
	if _, err := lock.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Errorf("Unlock failed: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Errorf("Second Unlock failed: %v", err)
	}
	if lock.IsLocked() {
		t.Error("Expected lock to be released")
	}
}
