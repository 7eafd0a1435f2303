/***************************************************************
 *
 * Copyright (C) 2026, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

// Package logging holds log output until configuration is loaded, then
// flushes it to stderr or to the file named by Logging.LogLocation.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log/term"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mediadeck/mediadeck/param"
)

// BufferedLogHook buffers log entries until they are flushed
type BufferedLogHook struct {
	mu      sync.Mutex
	entries []*log.Entry
	flushed atomic.Bool
}

var (
	bufferedHook atomic.Pointer[BufferedLogHook]
	flushOnce    sync.Once
	logFHandle   *os.File
)

func NewBufferedLogHook() *BufferedLogHook {
	return &BufferedLogHook{
		entries: make([]*log.Entry, 0),
	}
}

// Fire is called on every log entry
func (hook *BufferedLogHook) Fire(entry *log.Entry) error {
	if hook.flushed.Load() {
		return nil
	}
	hook.mu.Lock()
	hook.entries = append(hook.entries, entry)
	hook.mu.Unlock()
	return nil
}

func (hook *BufferedLogHook) Levels() []log.Level {
	return log.AllLevels
}

// SetupLogBuffering discards direct output and captures entries in a hook
// until FlushLogs is called.
func SetupLogBuffering() {
	log.SetOutput(io.Discard)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		DisableColors: true,
	})

	hook := NewBufferedLogHook()
	if bufferedHook.CompareAndSwap(nil, hook) {
		log.AddHook(hook)
	}
}

// FlushLogs writes out buffered entries and switches to direct logging.
// When pushToFile is set and Logging.LogLocation is configured, output
// goes to that file instead of stderr.
func FlushLogs(pushToFile bool) error {
	var err error
	flushOnce.Do(func() {
		hook := bufferedHook.Load()
		if hook == nil || hook.flushed.Load() {
			return
		}
		hook.flushed.Store(true)

		logLocation := param.Logging_LogLocation.GetString()
		if pushToFile && logLocation != "" {
			if dir := filepath.Dir(logLocation); dir != "" {
				if mkErr := os.MkdirAll(dir, 0750); mkErr != nil {
					err = errors.Wrap(mkErr, "failed to access/create specified log directory")
					return
				}
			}
			f, openErr := os.OpenFile(logLocation, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
			if openErr != nil {
				err = errors.Wrap(openErr, "failed to access specified log file")
				return
			}
			logFHandle = f
			log.SetOutput(f)
			log.SetFormatter(&log.TextFormatter{
				FullTimestamp:          true,
				DisableColors:          true,
				DisableLevelTruncation: true,
			})
		} else {
			log.SetOutput(os.Stderr)
			log.SetFormatter(&log.TextFormatter{
				FullTimestamp:          true,
				ForceColors:            term.IsTerminal(log.StandardLogger().Out),
				DisableLevelTruncation: true,
			})
		}

		hook.mu.Lock()
		for _, entry := range hook.entries {
			if entry.Level > log.GetLevel() {
				continue
			}
			if formatted, fmtErr := entry.String(); fmtErr == nil {
				_, _ = log.StandardLogger().Out.Write([]byte(formatted))
			}
		}
		hook.entries = nil
		hook.mu.Unlock()

		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
		bufferedHook.Store(nil)
	})
	return err
}

// ResetLogFlush lets unit tests buffer and flush again.
func ResetLogFlush() {
	flushOnce = sync.Once{}
}

// CloseLogger closes the log file handle, if any; intended for tests.
func CloseLogger() {
	if logFHandle != nil {
		_ = logFHandle.Close()
		logFHandle = nil
	}
}
