// Remote - command line remote for a SuperBit running the ws transport.
// Sends one command per flag, then optionally watches LED updates.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-superbit/internal/httpc"
	"github.com/teslashibe/go-superbit/pkg/command"
	"github.com/teslashibe/go-superbit/pkg/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/remote", "Robot remote endpoint")
	direction := flag.String("direction", "", "Drive one pulse: forward, left, right or backwards")
	led := flag.Int("led", -1, "Set the LED colour index (0 = off)")
	arm := flag.String("arm", "", "Catapult: fire or rest")
	read := flag.Bool("read", false, "Read the current LED index")
	subscribe := flag.Bool("subscribe", true, "Receive pushed LED updates")
	watch := flag.Bool("watch", false, "Keep printing LED updates until Ctrl+C")
	status := flag.String("status", "", "Print the dashboard status from this base URL and exit, e.g. http://localhost:8080")
	flag.Parse()

	if *status != "" {
		if err := printStatus(*status); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		return
	}

	ws, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		fmt.Printf("❌ Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer ws.Close()

	if err := expectWelcome(ws); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	var msgs []*protocol.Message
	add := func(m *protocol.Message, err error) {
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(2)
		}
		msgs = append(msgs, m)
	}

	add(protocol.NewSubscribeMessage(command.ChannelLED.String(), *subscribe))
	if *direction != "" {
		d, err := command.ParseDirection(*direction)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(2)
		}
		add(protocol.NewWriteMessage(command.ChannelDirection.String(), []byte{byte(d)}))
	}
	if *led != -1 {
		v, err := ledPayload(*led)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(2)
		}
		add(protocol.NewWriteMessage(command.ChannelLED.String(), v))
	}
	switch *arm {
	case "":
	case "fire":
		add(protocol.NewWriteMessage(command.ChannelArm.String(), []byte{1}))
	case "rest":
		add(protocol.NewWriteMessage(command.ChannelArm.String(), []byte{0}))
	default:
		fmt.Printf("❌ -arm must be fire or rest, got %q\n", *arm)
		os.Exit(2)
	}
	if *read {
		add(protocol.NewReadMessage(command.ChannelLED.String()))
	}

	for _, m := range msgs {
		if err := send(ws, m); err != nil {
			fmt.Printf("❌ Send failed: %v\n", err)
			os.Exit(1)
		}
	}

	if !*watch {
		// Give the robot a moment to answer reads and push LED changes.
		_ = ws.SetReadDeadline(time.Now().Add(time.Second))
		printMessages(ws)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = ws.Close()
	}()

	fmt.Println("👀 Watching LED updates (Ctrl+C to stop)")
	printMessages(ws)
}

// ledPayload encodes an LED index as the one-byte channel value. Indexes past
// the colour table still fit a byte and are left for the robot to ignore.
func ledPayload(n int) ([]byte, error) {
	if n < 0 || n > math.MaxUint8 {
		return nil, fmt.Errorf("-led must be between 0 and %d, got %d", math.MaxUint8, n)
	}
	return []byte{byte(n)}, nil
}

func printStatus(baseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
	defer cancel()

	var st protocol.StatusData
	if err := httpc.GetJSON(ctx, nil, baseURL+"/api/status", &st); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Printf("🤖 %s via %s: %s\n", st.Device, st.Transport, st.State)
	if st.Peer != "" {
		fmt.Printf("   peer %s (session %s, subscribed=%v)\n", st.Peer, st.SessionID, st.Subscribed)
	}
	fmt.Printf("   led %d, last command %q\n", st.LEDIndex, st.LastCommand)
	fmt.Printf("   sessions %d, commands %d, invalid %d, faults %d, dropped %d\n",
		st.Sessions, st.Commands, st.InvalidCommands, st.Faults, st.DroppedEvents)
	if st.LastError != "" {
		fmt.Printf("   last error: %s\n", st.LastError)
	}
	return nil
}

func expectWelcome(ws *websocket.Conn) error {
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer ws.SetReadDeadline(time.Time{})

	msg, err := readMessage(ws)
	if err != nil {
		return fmt.Errorf("read welcome: %w", err)
	}
	switch msg.Type {
	case protocol.TypeWelcome:
		w, err := msg.GetWelcomeData()
		if err != nil {
			return err
		}
		fmt.Printf("✅ Connected to %s (session %s)\n", w.Device, w.SessionID)
		return nil
	case protocol.TypeReject:
		r, err := msg.GetRejectData()
		if err != nil {
			return err
		}
		return fmt.Errorf("robot refused connection: %s", r.Reason)
	default:
		return fmt.Errorf("unexpected %s message", msg.Type)
	}
}

func send(ws *websocket.Conn, msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}

func readMessage(ws *websocket.Conn) (*protocol.Message, error) {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.ParseMessage(data)
}

// printMessages prints incoming values until the connection closes or the read deadline passes.
func printMessages(ws *websocket.Conn) {
	for {
		msg, err := readMessage(ws)
		if err != nil {
			return
		}
		switch msg.Type {
		case protocol.TypeValue:
			v, err := msg.GetValueData()
			if err != nil || len(v.Value) == 0 {
				continue
			}
			kind := "read"
			if v.Notify {
				kind = "notify"
			}
			fmt.Printf("💡 %s %s = %d\n", kind, v.Channel, v.Value[0])
		case protocol.TypePong:
			fmt.Println("🏓 pong")
		default:
			fmt.Printf("📨 %s\n", msg.Type)
		}
	}
}
