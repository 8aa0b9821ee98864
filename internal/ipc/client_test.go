package ipc

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/logging"
)

const testTimeout = 5 * time.Second

// fakeDaemon accepts connections on a unix socket and hands them to the test.
type fakeDaemon struct {
	listener net.Listener
	conns    chan net.Conn
	done     chan struct{}
	once     sync.Once
}

func startFakeDaemon(t *testing.T) (string, *fakeDaemon) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "d.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen on %s: %v", path, err)
	}

	daemon := &fakeDaemon{
		listener: listener,
		conns:    make(chan net.Conn, 4),
		done:     make(chan struct{}),
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			select {
			case daemon.conns <- conn:
			case <-daemon.done:
				conn.Close()
				return
			}
		}
	}()
	t.Cleanup(daemon.close)
	return path, daemon
}

func (d *fakeDaemon) close() {
	d.once.Do(func() {
		close(d.done)
		d.listener.Close()
	})
}

func (d *fakeDaemon) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-d.conns:
		return conn
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func receiveEvent(t *testing.T, client *Client) api.Event {
	t.Helper()
	select {
	case ev := <-client.Events():
		return ev
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

// readCommand consumes the status request the client sends on connect.
func readCommand(t *testing.T, conn net.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(testTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read command: %v", err)
	}
	return strings.TrimSpace(line)
}

func TestClientReceivesEvents(t *testing.T) {
	path, daemon := startFakeDaemon(t)
	client := NewClient(path, time.Second, logging.NewNop())
	defer client.Disconnect()

	client.Connect()
	conn := daemon.accept(t)
	defer conn.Close()

	payload := `{"event":"started","filename":"a.mp4"}` + "\n" +
		`{"event":"progress","percent":25,"stage":"transcribe"}` + "\n"
	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("write events: %v", err)
	}

	first := receiveEvent(t, client)
	if _, ok := first.(api.StartedEvent); !ok {
		t.Fatalf("first event = %T, want StartedEvent", first)
	}
	second := receiveEvent(t, client)
	progress, ok := second.(api.ProgressEvent)
	if !ok {
		t.Fatalf("second event = %T, want ProgressEvent", second)
	}
	if progress.Percent != 25 {
		t.Errorf("Percent = %v, want 25", progress.Percent)
	}
}

func TestClientSendsStatusCommandOnConnect(t *testing.T) {
	path, daemon := startFakeDaemon(t)
	client := NewClient(path, time.Second, logging.NewNop())
	defer client.Disconnect()

	client.Connect()
	conn := daemon.accept(t)
	defer conn.Close()

	if got := readCommand(t, conn); got != `{"command":"status"}` {
		t.Errorf("connect command = %q", got)
	}
}

func TestClientConnectivityFlipsOnFirstEvent(t *testing.T) {
	path, daemon := startFakeDaemon(t)
	client := NewClient(path, time.Second, logging.NewNop())
	defer client.Disconnect()

	flips := make(chan bool, 4)
	client.OnConnectivity(func(connected bool) { flips <- connected })

	client.Connect()
	conn := daemon.accept(t)
	defer conn.Close()

	// Dial success alone must not flip the flag.
	if client.Connected() {
		t.Error("Connected() = true before any event")
	}

	if _, err := conn.Write([]byte(`{"event":"state","status":"idle","queue":[]}` + "\n")); err != nil {
		t.Fatalf("write event: %v", err)
	}
	receiveEvent(t, client)

	select {
	case connected := <-flips:
		if !connected {
			t.Error("first flip = false, want true")
		}
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the connectivity flip")
	}
	if !client.Connected() {
		t.Error("Connected() = false after an event")
	}
}

func TestClientHandlesSplitFrames(t *testing.T) {
	path, daemon := startFakeDaemon(t)
	client := NewClient(path, time.Second, logging.NewNop())
	defer client.Disconnect()

	client.Connect()
	conn := daemon.accept(t)
	defer conn.Close()

	frame := `{"event":"progress","percent":60,"stage":"align"}` + "\n"
	half := len(frame) / 2
	if _, err := conn.Write([]byte(frame[:half])); err != nil {
		t.Fatalf("write first half: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := conn.Write([]byte(frame[half:])); err != nil {
		t.Fatalf("write second half: %v", err)
	}

	ev := receiveEvent(t, client)
	progress, ok := ev.(api.ProgressEvent)
	if !ok {
		t.Fatalf("event = %T, want ProgressEvent", ev)
	}
	if progress.Percent != 60 || progress.Stage != "align" {
		t.Errorf("unexpected payload: %+v", progress)
	}
}

func TestClientDropsUndecodableLines(t *testing.T) {
	path, daemon := startFakeDaemon(t)
	client := NewClient(path, time.Second, logging.NewNop())
	defer client.Disconnect()

	client.Connect()
	conn := daemon.accept(t)
	defer conn.Close()

	payload := "this is not json\n" + `{"event":"started","filename":"a.mp4"}` + "\n"
	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	ev := receiveEvent(t, client)
	if _, ok := ev.(api.StartedEvent); !ok {
		t.Fatalf("event = %T, want StartedEvent after the bad line", ev)
	}
}

func TestClientReconnectsAfterConnectionLoss(t *testing.T) {
	path, daemon := startFakeDaemon(t)
	client := NewClient(path, 50*time.Millisecond, logging.NewNop())
	defer client.Disconnect()

	flips := make(chan bool, 8)
	client.OnConnectivity(func(connected bool) { flips <- connected })

	client.Connect()
	first := daemon.accept(t)
	if _, err := first.Write([]byte(`{"event":"state","status":"idle","queue":[]}` + "\n")); err != nil {
		t.Fatalf("write event: %v", err)
	}
	receiveEvent(t, client)

	first.Close()

	// The client retries on the fixed delay and the flag flips again once
	// the new connection delivers an event.
	second := daemon.accept(t)
	defer second.Close()
	if _, err := second.Write([]byte(`{"event":"state","status":"idle","queue":[]}` + "\n")); err != nil {
		t.Fatalf("write event on second connection: %v", err)
	}
	receiveEvent(t, client)

	want := []bool{true, false, true}
	for i, expected := range want {
		select {
		case got := <-flips:
			if got != expected {
				t.Fatalf("flip %d = %v, want %v", i, got, expected)
			}
		case <-time.After(testTimeout):
			t.Fatalf("timed out waiting for flip %d", i)
		}
	}
}

func TestClientConnectIsIdempotent(t *testing.T) {
	path, daemon := startFakeDaemon(t)
	client := NewClient(path, time.Second, logging.NewNop())
	defer client.Disconnect()

	client.Connect()
	client.Connect()

	conn := daemon.accept(t)
	defer conn.Close()

	select {
	case extra := <-daemon.conns:
		extra.Close()
		t.Fatal("second Connect dialed a second connection")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClientDisconnectIsTerminal(t *testing.T) {
	path, daemon := startFakeDaemon(t)
	client := NewClient(path, 10*time.Millisecond, logging.NewNop())

	client.Connect()
	conn := daemon.accept(t)
	defer conn.Close()

	client.Disconnect()
	if client.Connected() {
		t.Error("Connected() = true after Disconnect")
	}

	client.Connect()
	select {
	case extra := <-daemon.conns:
		extra.Close()
		t.Fatal("Connect after Disconnect dialed again")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientDialFailureSchedulesRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.sock")
	client := NewClient(path, 50*time.Millisecond, logging.NewNop())
	defer client.Disconnect()

	// No listener yet; the dial fails silently and a retry is scheduled.
	client.Connect()
	if client.Connected() {
		t.Fatal("Connected() = true with no listener")
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	done := make(chan struct{})
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte(`{"event":"state","status":"idle","queue":[]}` + "\n"))
		<-done
		conn.Close()
	}()
	defer close(done)

	receiveEvent(t, client)
	if !client.Connected() {
		t.Error("Connected() = false after the retry delivered an event")
	}
}
