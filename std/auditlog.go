// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package std

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// AuditLog is an opt-in CSV trail of session connect/disconnect events,
// adapted from the teacher's std/snmp.go periodic SNMP-to-CSV logger. It is
// disabled unless a path is configured and never sits on the frame
// encode/decode hot path.
type AuditLog struct {
	mu   sync.Mutex
	w    *csv.Writer
	f    *os.File
	path string
}

// OpenAuditLog opens (creating if needed) a CSV file at path and writes a
// header row if the file is empty. An empty path disables the audit log.
func OpenAuditLog(path string) (*AuditLog, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write([]string{"unix", "session_id", "event", "guid", "reason"}); err != nil {
			log.Println(err)
		}
		w.Flush()
	}
	return &AuditLog{w: w, f: f, path: path}, nil
}

// Record appends one audit row. Safe for concurrent use by many Sessions.
func (a *AuditLog) Record(sessionID uint64, event, guid, reason string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.w.Write([]string{fmt.Sprint(time.Now().Unix()), fmt.Sprint(sessionID), event, guid, reason}); err != nil {
		log.Println(err)
		return
	}
	a.w.Flush()
}

// Close flushes and closes the underlying file.
func (a *AuditLog) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.w.Flush()
	return a.f.Close()
}
