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
	"fmt"
	"log"

	"github.com/fatih/color"
)

// Warnf prints a colored warning to logger, falling back to log.Default()
// when logger is nil. Used for the "encryption requested but no passphrase
// configured" case and similar non-fatal misconfigurations, the same way
// server/main.go uses color.Red for its QPP warnings.
func Warnf(logger *log.Logger, format string, args ...interface{}) {
	msg := color.YellowString("warning: "+format, args...)
	if logger != nil {
		logger.Println(msg)
		return
	}
	log.Println(msg)
}

// Errorf prints a red-colored error line, mirroring color.Red(...) in the
// teacher's main().
func Errorf(logger *log.Logger, format string, args ...interface{}) {
	msg := color.RedString(fmt.Sprintf(format, args...))
	if logger != nil {
		logger.Println(msg)
		return
	}
	log.Println(msg)
}
