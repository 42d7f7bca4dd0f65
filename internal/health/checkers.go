// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LastRunChecker reports on the most recent refresh.
type LastRunChecker struct {
	getLastRun func() (lastSuccess time.Time, lastError string)
	maxAge     time.Duration
	now        func() time.Time
}

// NewLastRunChecker creates a checker for refresh status. A snapshot older
// than maxAge is reported as degraded.
func NewLastRunChecker(getLastRun func() (time.Time, string), maxAge time.Duration) *LastRunChecker {
	return &LastRunChecker{getLastRun: getLastRun, maxAge: maxAge, now: time.Now}
}

func (c *LastRunChecker) Name() string { return "last_refresh" }

func (c *LastRunChecker) Check(context.Context) CheckResult {
	lastSuccess, lastError := c.getLastRun()

	if lastSuccess.IsZero() {
		res := CheckResult{Status: StatusUnhealthy, Message: "no successful refresh yet"}
		if lastError != "" {
			res.Error = lastError
		}
		return res
	}

	// The last good snapshot is still served, so failures only degrade.
	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last refresh failed, serving previous snapshot",
		}
	}

	if c.maxAge > 0 {
		if age := c.now().Sub(lastSuccess); age > c.maxAge {
			return CheckResult{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("snapshot is %s old", age.Truncate(time.Second)),
			}
		}
	}

	return CheckResult{Status: StatusHealthy, Message: "last refresh successful"}
}

// DirChecker checks that a directory exists and is writable.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a writable-directory checker.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	if err := checkWritableDir(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}

func checkWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	f, err := os.CreateTemp(path, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(filepath.Clean(name))
	return nil
}

// FileChecker checks if a file exists and is readable.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker creates a checker for file existence. An empty path is
// reported healthy.
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

func (c *FileChecker) Check(context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Status: StatusUnhealthy, Error: "file not found", Message: c.path}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	}
	if info.Size() == 0 {
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: "file exists and readable"}
}

// FuncChecker adapts a check function. Failures report failStatus, so
// optional components can degrade instead of failing readiness.
type FuncChecker struct {
	name       string
	check      func(ctx context.Context) error
	failStatus Status
}

// NewFuncChecker wraps check; a failing check is unhealthy.
func NewFuncChecker(name string, check func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, check: check, failStatus: StatusUnhealthy}
}

// NewOptionalChecker wraps check; a failing check is only degraded.
func NewOptionalChecker(name string, check func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, check: check, failStatus: StatusDegraded}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if err := c.check(ctx); err != nil {
		return CheckResult{Status: c.failStatus, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
