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

package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/xtaci/tcplink/dispatch"
	"github.com/xtaci/tcplink/policy"
	"github.com/xtaci/tcplink/server"
	"github.com/xtaci/tcplink/std"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "tcplinkd"
	myApp.Usage = "TCP messaging engine server"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen,l",
			Value: "0.0.0.0:29900",
			Usage: `listen address, eg: "IP:PORT"`,
		},
		cli.StringFlag{
			Name:   "key",
			Value:  "",
			Usage:  "pre-shared passphrase for frame encryption; leave empty to send encrypted frames unencrypted with a warning",
			EnvVar: "TCPLINK_KEY",
		},
		cli.IntFlag{
			Name:  "maxsessions",
			Value: policy.DefaultMaxSessions,
			Usage: "maximum concurrent sessions",
		},
		cli.DurationFlag{
			Name:  "inactivitytimeout",
			Value: 0,
			Usage: "close a session after this much time without any frame (0 disables)",
		},
		cli.StringFlag{
			Name:  "whitelist",
			Value: "",
			Usage: "comma-separated list of admitted peer IPs; empty means unrestricted unless -blacklist is set",
		},
		cli.StringFlag{
			Name:  "blacklist",
			Value: "",
			Usage: "comma-separated list of rejected peer IPs",
		},
		cli.StringFlag{
			Name:  "auditlog",
			Value: "",
			Usage: "path to a CSV file recording connect/disconnect/reject events",
		},
		cli.BoolFlag{
			Name:  "quiet",
			Usage: "disable per-session connect/disconnect/message logging",
		},
	}
	action := func(c *cli.Context) error {
		addr := c.String("listen")
		host, port, err := std.ResolveBindAddr(addr)
		checkError(err)

		pol := policy.NewSet()
		pol.MaxSessions = c.Int("maxsessions")
		pol.InactivityTimeout = c.Duration("inactivitytimeout")
		if wl := c.String("whitelist"); wl != "" {
			pol.Whitelist = strings.Split(wl, ",")
		}
		if bl := c.String("blacklist"); bl != "" {
			pol.Blacklist = strings.Split(bl, ",")
		}
		checkError(pol.Validate())

		var auditLog *std.AuditLog
		if path := c.String("auditlog"); path != "" {
			auditLog, err = std.OpenAuditLog(path)
			checkError(err)
			defer auditLog.Close()
		}

		quiet := c.Bool("quiet")
		logln := func(v ...interface{}) {
			if !quiet {
				log.Println(v...)
			}
		}

		dispatcher := dispatch.NewDispatcher(dispatch.EventSink{
			OnConnected: func(e dispatch.ConnectedEvent) {
				logln("connected", e.Session.ID())
			},
			OnDisconnected: func(e dispatch.DisconnectedEvent) {
				logln("disconnected", e.Session.ID(), e.Reason)
			},
			OnMessage: func(e dispatch.MessageEvent) {
				logln("message from", e.Session.ID(), ":", e.Text)
			},
			OnBytes: func(e dispatch.BytesEvent) {
				logln("bytes from", e.Session.ID(), ":", len(e.Data), "byte(s)")
			},
		}, nil, nil)

		srv := server.New(server.Config{
			Dispatcher:        dispatcher,
			Policy:            *pol,
			Passphrase:        c.String("key"),
			InactivityTimeout: pol.InactivityTimeout,
			AuditLog:          auditLog,
		})

		log.Println("version:", VERSION)
		log.Println("listening on:", fmt.Sprintf("%s:%d", host, port))
		log.Println("max sessions:", pol.MaxSessions)
		if c.String("key") == "" {
			color.Yellow("no passphrase configured; encrypted frames will be sent unencrypted")
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			log.Println("shutting down")
			srv.Shutdown()
		}()

		return srv.Listen(host, port)
	}
	myApp.Action = wrapErrors(action)

	if err := myApp.Run(os.Args); err != nil {
		checkError(err)
	}
}

// wrapErrors adds a brief delay before returning any error from Action, so
// the shutdown goroutine's log line has a chance to print first.
func wrapErrors(action func(*cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		err := action(c)
		if err != nil {
			time.Sleep(10 * time.Millisecond)
		}
		return err
	}
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
