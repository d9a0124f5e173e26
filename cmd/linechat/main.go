// Command linechat is a minimal terminal client: it pumps server output to
// stdout and stdin lines to the server, one goroutine each way.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/ledzpl/linechat/internal/config"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <server_ip>\n", os.Args[0])
		os.Exit(1)
	}

	addr := dialAddr(os.Args[1])
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Connected to %s\n", addr)
	fmt.Println("Type messages. Commands: /name <new>, /list, /msg <id> <text>, /quit")

	// Server-to-stdout pump. When the server goes away the whole client
	// exits, mid-keystroke or not.
	go func() {
		_, _ = io.Copy(os.Stdout, conn)
		fmt.Fprintln(os.Stderr, "\n[Disconnected from server]")
		os.Exit(0)
	}()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	go func() {
		<-interrupts
		fmt.Fprintln(conn, "/quit")
		conn.Close()
		fmt.Println("\n[Client exiting]")
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1024), config.DefaultLineLimit)
	for scanner.Scan() {
		line := scanner.Text()
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			break
		}
		if strings.HasPrefix(line, "/quit") {
			break
		}
	}

	conn.Close()
}

// dialAddr returns the argument as-is when it already carries a port and
// appends the well-known port otherwise.
func dialAddr(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(config.DefaultPort))
}
