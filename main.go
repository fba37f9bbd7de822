// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cdchat/internal"
	"cdchat/internal/reactor"
)

const usage = `[USAGE]: cdchat server [flags]
         cdchat client [flags] [name]

Run "cdchat server -h" or "cdchat client -h" for the flags.`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "server":
		err = runServer(os.Args[2:])
	case "client":
		err = runClient(os.Args[2:])
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runServer(args []string) error {
	cfg := internal.DefaultServerConfig()

	// Parse command line arguments
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP listen address")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP status and WebSocket address, empty disables it")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "activity log file, overridden by $"+internal.LogFileEnv)
	fs.IntVar(&cfg.MaxClients, "max-clients", cfg.MaxClients, "maximum simultaneous connections, 0 is unlimited")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "deadline for the rest of an inbound frame once it started")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "deadline for each outbound frame")
	fs.BoolVar(&cfg.EchoOnce, "echo-once", cfg.EchoOnce, "echo a message to its sender once instead of once per recipient")
	fs.Parse(args)

	server := internal.NewServer(cfg)
	if server.Logfile != nil {
		defer server.Logfile.Close()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		if err := server.Close(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	return server.Start()
}

func runClient(args []string) error {
	cfg := internal.DefaultClientConfig()

	// Parse command line arguments
	fs := flag.NewFlagSet("client", flag.ExitOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "chat server address")
	fs.StringVar(&cfg.WebSocketURL, "ws", cfg.WebSocketURL, "connect over WebSocket to this URL instead, e.g. ws://localhost:8080/ws")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "display name")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file, overridden by $"+internal.LogFileEnv)
	fs.BoolVar(&cfg.UI, "ui", cfg.UI, "full screen terminal interface")
	fs.Parse(args)
	if fs.NArg() > 1 {
		fmt.Println(usage)
		os.Exit(2)
	}
	if fs.NArg() == 1 {
		cfg.Name = fs.Arg(0)
	}
	cfg = cfg.Sanitize()

	var logOut io.Writer = io.Discard
	if logfile, err := internal.OpenLogFile(cfg.LogFile); err != nil {
		log.Printf("Error opening log file: %v", err)
	} else {
		defer logfile.Close()
		logOut = logfile
	}

	conn, err := internal.Dial(cfg)
	if err != nil {
		return err
	}
	r := reactor.New()

	if cfg.UI {
		return RunWithUI(cfg, conn, r, logOut)
	}

	client := internal.NewClient(cfg.Name, conn, r, os.Stdout, logOut)
	if err := client.Start(); err != nil {
		conn.Close()
		return err
	}
	if err := client.AttachInput(os.Stdin); err != nil {
		conn.Close()
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		r.Post(client.Quit)
	}()

	return r.RunForever(context.Background())
}
