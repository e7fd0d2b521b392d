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
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/xtaci/tcplink/client"
	"github.com/xtaci/tcplink/dispatch"
	"github.com/xtaci/tcplink/std"
	"github.com/xtaci/tcplink/wire"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "tcplink-client"
	myApp.Usage = "TCP messaging engine client"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "remote,r",
			Value: "127.0.0.1:29900",
			Usage: `server address, eg: "IP:PORT"`,
		},
		cli.StringFlag{
			Name:   "key",
			Value:  "",
			Usage:  "pre-shared passphrase; must match the server's",
			EnvVar: "TCPLINK_KEY",
		},
		cli.StringFlag{
			Name:  "name",
			Value: "tcplink-client",
			Usage: "identity name sent in the Auth frame",
		},
		cli.IntFlag{
			Name:  "reconnect",
			Value: 5,
			Usage: "seconds between reconnect attempts; 0 disables reconnecting",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		host, port, err := std.ResolveBindAddr(c.String("remote"))
		checkError(err)

		dispatcher := dispatch.NewDispatcher(dispatch.EventSink{
			OnConnected: func(e dispatch.ConnectedEvent) {
				log.Println("connected, session", e.Session.ID())
			},
			OnDisconnected: func(e dispatch.DisconnectedEvent) {
				log.Println("disconnected:", e.Reason)
			},
			OnMessage: func(e dispatch.MessageEvent) {
				fmt.Println(e.Text)
			},
		}, nil, nil)

		cl := client.New(client.Config{
			Dispatcher: dispatcher,
			Passphrase: c.String("key"),
			Identity:   wire.Identity{Name: c.String("name")},
		})

		if c.String("key") == "" {
			color.Yellow("no passphrase configured; encrypted frames will be sent unencrypted")
		}

		if err := cl.Connect(host, port, c.Int("reconnect")); err != nil {
			return err
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			cl.Close()
			os.Exit(0)
		}()

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			if err := cl.Send(wire.BuildFrame(wire.Message, []byte(line), wire.SendOptions{})); err != nil {
				log.Println("send failed:", err)
			}
		}
		return nil
	}

	if err := myApp.Run(os.Args); err != nil {
		checkError(err)
	}
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
